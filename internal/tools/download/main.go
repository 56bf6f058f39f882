// Command download fetches a QuickJS WASI module for the quickjs transport.
//
//	go run ./internal/tools/download --sha256 <hex> <url> qjs.wasm
//	export INKBRIDGE_QUICKJS_WASM=$PWD/qjs.wasm
//
// An existing output file is left alone unless its checksum is wrong.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
)

// wasmMagic starts every WebAssembly binary.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

func main() {
	sum := pflag.String("sha256", "", "Expected SHA-256 of the module (hex)")
	force := pflag.Bool("force", false, "Download even if the output exists")
	pflag.Parse()

	if pflag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: download [--sha256 hex] [--force] <url> <output>")
		os.Exit(1)
	}
	url, output := pflag.Arg(0), pflag.Arg(1)

	if err := run(url, output, strings.ToLower(*sum), *force); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(url, output, want string, force bool) error {
	if !force {
		if err := verify(output, want); err == nil {
			slog.Info("module present", "path", output)
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("replacing module", "path", output, "reason", err)
		}
	}

	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(output), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	got := hex.EncodeToString(h.Sum(nil))
	if want != "" && got != want {
		return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
	}
	if err := checkMagic(tmp.Name()); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return err
	}

	slog.Info("module downloaded", "path", output, "bytes", n, "sha256", got)
	return nil
}

// verify reports whether path exists and, when want is set, matches it.
func verify(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if want == "" {
		return nil
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != want {
		return fmt.Errorf("checksum mismatch: got %s", got)
	}
	return nil
}

func checkMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, len(wasmMagic))
	if _, err := io.ReadFull(f, head); err != nil || string(head) != string(wasmMagic) {
		return errors.New("not a WebAssembly module")
	}
	return nil
}
