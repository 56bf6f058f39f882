package tools_test

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inkbridge/inkbridge/codec"
	"github.com/inkbridge/inkbridge/dispatch/canned"
	"github.com/inkbridge/inkbridge/dispatch/sim"
	"github.com/inkbridge/inkbridge/executor"
	"github.com/inkbridge/inkbridge/fragment"
	"github.com/inkbridge/inkbridge/identity"
	"github.com/inkbridge/inkbridge/tools"
)

type harness struct {
	t       *testing.T
	catalog *tools.Catalog
	session *mcp.ClientSession
}

func connect(t *testing.T, tr executor.Transport) *harness {
	t.Helper()
	exec := executor.New(executor.NewWorkingArea(t.TempDir()), tr)
	catalog := tools.New(fragment.Builtins(), executor.NewQueue(exec))
	server := catalog.NewServer("test")

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() {
		session.Close()
		serverSession.Wait()
	})
	return &harness{t: t, catalog: catalog, session: session}
}

func simulated(t *testing.T) *harness {
	t.Helper()
	tr, err := sim.New(executor.DefaultApplication)
	if err != nil {
		t.Fatal(err)
	}
	return connect(t, tr)
}

// call invokes a tool and returns its text and whether it reported an error.
func (h *harness) call(name string, args map[string]any) (string, bool) {
	h.t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := h.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		h.t.Fatalf("call %s: %v", name, err)
	}
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n"), res.IsError
}

func (h *harness) mustCall(name string, args map[string]any) string {
	h.t.Helper()
	text, isErr := h.call(name, args)
	if isErr {
		h.t.Fatalf("%s failed: %s", name, text)
	}
	return text
}

// payload splits "<message>\n\n<json>" and decodes the JSON part.
func payload(t *testing.T, text, wantMessage string, v any) {
	t.Helper()
	message, data, ok := strings.Cut(text, "\n\n")
	if !ok {
		t.Fatalf("no payload in %q", text)
	}
	if message != wantMessage {
		t.Errorf("message = %q, want %q", message, wantMessage)
	}
	if err := codec.Decode(data, v); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
}

type handle struct {
	UUID string `json:"uuid"`
}

func uuids(hs []handle) []any {
	out := make([]any, len(hs))
	for i, h := range hs {
		out[i] = h.UUID
	}
	return out
}

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalogListsEveryOperation(t *testing.T) {
	h := simulated(t)

	res, err := h.session.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	slices.Sort(names)
	want := []string{
		"calc_expressions", "change_characters", "change_images", "change_pathitems",
		"change_textframes", "count_characters", "create_images", "create_lines",
		"create_rects", "create_textframes", "group_items", "list_fonts", "list_images",
		"list_pathitems", "list_textframes", "mask_items", "open_document",
		"remove_items", "select_items",
	}
	if !slices.Equal(names, want) {
		t.Errorf("tools = %v\nwant %v", names, want)
	}

	infos := h.catalog.Tools()
	if len(infos) != len(want) {
		t.Fatalf("catalog has %d entries, want %d", len(infos), len(want))
	}
	lib := fragment.Builtins()
	for _, info := range infos {
		wantLocal := info.Name == "calc_expressions" || info.Name == "count_characters"
		if info.Local != wantLocal {
			t.Errorf("%s: local = %v", info.Name, info.Local)
		}
		if _, err := lib.Compose(info.Fragments, ""); err != nil {
			t.Errorf("%s: fragments do not compose: %v", info.Name, err)
		}
	}
}

func TestBodiesUseDeclaredFragmentsOnly(t *testing.T) {
	tr := canned.New("[]")
	h := connect(t, tr)

	h.mustCall("list_pathitems", nil)
	call, _ := tr.Last()
	for _, name := range []string{"function getDocument(", "function ensureIdentifier(", "function createUUID(", "function ptToMm("} {
		if !strings.Contains(call.Program, name) {
			t.Errorf("program missing %s", name)
		}
	}
	for _, name := range []string{"function toPt(", "function getPageItem("} {
		if strings.Contains(call.Program, name) {
			t.Errorf("program carries unneeded %s", name)
		}
	}
}

// auditArgs exercises every optional branch of each host operation.
var auditArgs = map[string]map[string]any{
	"open_document": {"path": "/tmp/a.ai"},
	"create_images": {"paths": []any{"/tmp/a.png"}},
	"list_images":   {},
	"change_images": {"changes": []any{map[string]any{
		"uuid": "u", "path": "/tmp/b.png", "x": "1mm", "y": "1mm",
		"width": "2mm", "height": "2mm", "maintainAspectRatio": true,
	}}},
	"select_items": {"uuids": []any{"u"}},
	"group_items":  {"uuids": []any{"u"}},
	"remove_items": {"uuids": []any{"u"}},
	"mask_items":   {"masks": []any{map[string]any{"maskUuid": "m", "maskedUuids": []any{"u"}}}},
	"create_rects": {"rects": []any{map[string]any{"position": []any{"1mm", "1mm"}, "size": []any{"2mm", "2mm"}}}},
	"create_lines": {"lines": []any{map[string]any{"points": map[string]any{"from": []any{"0mm", "0mm"}, "to": []any{"1mm", "1mm"}}}}},
	"list_pathitems": {},
	"change_pathitems": {"changes": []any{map[string]any{
		"uuid": "u", "fillCmyk": []any{0, 0, 0, 100}, "strokeCmyk": []any{0, 0, 0, 100},
		"strokeWidth": "1mm", "position": []any{"1mm", "1mm"}, "size": []any{"2mm", "2mm"},
	}}},
	"create_textframes": {"count": 1},
	"list_textframes":   {},
	"change_textframes": {"changes": []any{map[string]any{
		"uuid": "u", "text": "t", "fontName": "ArialMT", "fontSize": "4mm", "justification": "center",
		"colorCmyk": []any{0, 0, 0, 100}, "position": []any{"1mm", "1mm"}, "size": []any{"2mm", "2mm"},
	}}},
	"change_characters": {"uuid": "u", "changes": []any{map[string]any{
		"range": map[string]any{"from": 0, "to": 1}, "fontName": "ArialMT", "fontSize": "4mm",
		"baselineShift": "1mm", "horizontalScale": 90, "verticalScale": 110, "colorCmyk": []any{0, 0, 0, 100},
	}}},
	"list_fonts": {},
}

// usage is the text a body contains when it calls a fragment.
func usage(name string) string {
	if name == fragment.JSON {
		return "JSON.stringify("
	}
	return name + "("
}

func TestOperationsDeclareOnlyUsedFragments(t *testing.T) {
	tr := canned.New("[]")
	h := connect(t, tr)
	lib := fragment.Builtins()

	for _, info := range h.catalog.Tools() {
		if info.Local {
			continue
		}
		t.Run(info.Name, func(t *testing.T) {
			args, ok := auditArgs[info.Name]
			if !ok {
				t.Fatalf("no audit arguments for %s", info.Name)
			}
			h.mustCall(info.Name, args)
			call, _ := tr.Last()

			prefix, err := lib.Compose(info.Fragments, "")
			if err != nil {
				t.Fatal(err)
			}
			body, ok := strings.CutPrefix(call.Program, prefix.String())
			if !ok {
				t.Fatalf("program does not start with the declared fragments")
			}

			neededBy := map[string]bool{}
			for _, name := range info.Fragments {
				f, _ := lib.Get(name)
				for _, dep := range f.DependsOn {
					neededBy[dep] = true
				}
			}
			for _, name := range info.Fragments {
				if !strings.Contains(body, usage(name)) && !neededBy[name] {
					t.Errorf("declares %s but the body never calls it", name)
				}
			}

			closure := prefix.Names()
			for _, f := range lib.List() {
				if strings.Contains(body, usage(f.Name)) && !slices.Contains(closure, f.Name) {
					t.Errorf("body calls %s without declaring it", f.Name)
				}
			}
		})
	}
}

func TestCallerDataIsLiteral(t *testing.T) {
	tr := canned.New("")
	h := connect(t, tr)

	evil := `/tmp/x"); app.quit(); ("`
	h.mustCall("open_document", map[string]any{"path": evil})
	call, _ := tr.Last()
	lit, _ := codec.Literal(evil)
	if !strings.Contains(call.Program, "new File("+lit+")") {
		t.Errorf("path not embedded as a literal:\n%s", call.Program)
	}
}

// =============================================================================
// DOCUMENT AND IMAGES
// =============================================================================

func TestOpenDocument(t *testing.T) {
	h := simulated(t)
	if got := h.mustCall("open_document", map[string]any{"path": "/Users/me/poster.ai"}); got != "Document opened." {
		t.Errorf("unexpected reply %q", got)
	}
	if _, isErr := h.call("open_document", map[string]any{"path": ""}); !isErr {
		t.Error("empty path should fail")
	}
}

func TestImagesLifecycle(t *testing.T) {
	h := simulated(t)

	var created []handle
	payload(t, h.mustCall("create_images", map[string]any{"paths": []any{"/img/a.png", "/img/b.png"}}),
		"Placed successfully.", &created)
	if len(created) != 2 || !identity.Valid(created[0].UUID) {
		t.Fatalf("unexpected handles %+v", created)
	}

	h.mustCall("change_images", map[string]any{"changes": []any{
		map[string]any{"uuid": created[0].UUID, "x": "10mm", "y": "20mm", "width": "50mm", "maintainAspectRatio": true},
		map[string]any{"uuid": created[1].UUID, "path": "/img/c.png"},
	}})

	var images []struct {
		UUID   string `json:"uuid"`
		Path   string `json:"path"`
		X      string `json:"x"`
		Y      string `json:"y"`
		Width  string `json:"width"`
		Height string `json:"height"`
	}
	payload(t, h.mustCall("list_images", nil), "Retrieved successfully.", &images)
	byUUID := make(map[string]int)
	for i, img := range images {
		byUUID[img.UUID] = i
	}
	a := images[byUUID[created[0].UUID]]
	if a.X != "10mm" || a.Y != "20mm" || a.Width != "50mm" || a.Height != "50mm" {
		t.Errorf("unexpected geometry %+v", a)
	}
	if b := images[byUUID[created[1].UUID]]; b.Path != "/img/c.png" {
		t.Errorf("path not changed: %+v", b)
	}
}

func TestChangeUnknownItemFails(t *testing.T) {
	h := simulated(t)
	text, isErr := h.call("change_images", map[string]any{"changes": []any{
		map[string]any{"uuid": "00000000-0000-4000-8000-000000000000", "x": "1mm"},
	}})
	if !isErr {
		t.Fatal("expected error for unknown uuid")
	}
	if !strings.Contains(text, "host script failed") || !strings.Contains(text, "No item with UUID") {
		t.Errorf("unexpected error text %q", text)
	}
}

// =============================================================================
// PATHS AND ITEMS
// =============================================================================

type pathInfo struct {
	UUID     string   `json:"uuid"`
	Position []string `json:"position"`
	Size     []string `json:"size"`
	Selected bool     `json:"selected"`
}

func listPaths(t *testing.T, h *harness) map[string]pathInfo {
	t.Helper()
	var paths []pathInfo
	payload(t, h.mustCall("list_pathitems", nil), "Retrieved successfully.", &paths)
	out := make(map[string]pathInfo, len(paths))
	for _, p := range paths {
		out[p.UUID] = p
	}
	return out
}

func TestRectsAndLines(t *testing.T) {
	h := simulated(t)

	var rects []handle
	payload(t, h.mustCall("create_rects", map[string]any{"rects": []any{
		map[string]any{"position": []any{"10mm", "20mm"}, "size": []any{"30mm", "40Q"}},
	}}), "Created successfully.", &rects)

	var lines []handle
	payload(t, h.mustCall("create_lines", map[string]any{"lines": []any{
		map[string]any{"points": map[string]any{"from": []any{"0mm", "0mm"}, "to": []any{"10mm", "5mm"}}},
	}}), "Created successfully.", &lines)

	paths := listPaths(t, h)
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	r := paths[rects[0].UUID]
	if !slices.Equal(r.Position, []string{"10mm", "20mm"}) || !slices.Equal(r.Size, []string{"30mm", "10mm"}) {
		t.Errorf("unexpected rect %+v", r)
	}
	l := paths[lines[0].UUID]
	if !slices.Equal(l.Size, []string{"10mm", "5mm"}) {
		t.Errorf("unexpected line %+v", l)
	}

	h.mustCall("change_pathitems", map[string]any{"changes": []any{
		map[string]any{"uuid": rects[0].UUID, "fillCmyk": []any{0, 100, 100, 0}, "position": []any{"1mm", "2mm"}, "size": []any{"3mm", "4mm"}},
	}})
	r = listPaths(t, h)[rects[0].UUID]
	if !slices.Equal(r.Position, []string{"1mm", "2mm"}) || !slices.Equal(r.Size, []string{"3mm", "4mm"}) {
		t.Errorf("change not applied %+v", r)
	}
}

func TestPairValidation(t *testing.T) {
	h := simulated(t)
	text, isErr := h.call("create_rects", map[string]any{"rects": []any{
		map[string]any{"position": []any{"1mm"}, "size": []any{"1mm", "1mm"}},
	}})
	if !isErr || !strings.Contains(text, "rects[0].position") {
		t.Errorf("expected pair validation error, got %q", text)
	}
	text, isErr = h.call("change_pathitems", map[string]any{"changes": []any{
		map[string]any{"uuid": "x", "fillCmyk": []any{0, 0, 0}},
	}})
	if !isErr || !strings.Contains(text, "fillCmyk") {
		t.Errorf("expected CMYK validation error, got %q", text)
	}
}

func TestListAssignsHandlesLazily(t *testing.T) {
	h := simulated(t)
	h.mustCall("create_lines", map[string]any{"lines": []any{
		map[string]any{"points": map[string]any{"from": []any{"0", "0"}, "to": []any{"1", "1"}}},
	}})

	first := listPaths(t, h)
	second := listPaths(t, h)
	for uuid := range first {
		if _, ok := second[uuid]; !ok {
			t.Errorf("handle %s changed between listings", uuid)
		}
	}
}

func TestSelectGroupRemove(t *testing.T) {
	h := simulated(t)
	var rects []handle
	payload(t, h.mustCall("create_rects", map[string]any{"rects": []any{
		map[string]any{"position": []any{"0", "0"}, "size": []any{"1", "1"}},
		map[string]any{"position": []any{"0", "0"}, "size": []any{"2", "2"}},
		map[string]any{"position": []any{"0", "0"}, "size": []any{"3", "3"}},
	}}), "Created successfully.", &rects)

	if got := h.mustCall("select_items", map[string]any{"uuids": uuids(rects[:2])}); got != "Objects selected." {
		t.Errorf("unexpected reply %q", got)
	}
	paths := listPaths(t, h)
	if !paths[rects[0].UUID].Selected || !paths[rects[1].UUID].Selected || paths[rects[2].UUID].Selected {
		t.Errorf("unexpected selection %+v", paths)
	}

	var group handle
	payload(t, h.mustCall("group_items", map[string]any{"uuids": uuids(rects[:2])}), "Objects grouped.", &group)
	if !identity.Valid(group.UUID) {
		t.Fatalf("group handle invalid: %q", group.UUID)
	}

	// Removing the group removes its members with it.
	h.mustCall("remove_items", map[string]any{"uuids": []any{group.UUID}})
	paths = listPaths(t, h)
	if len(paths) != 1 {
		t.Fatalf("expected 1 path after removing the group, got %d", len(paths))
	}
	if _, ok := paths[rects[2].UUID]; !ok {
		t.Error("ungrouped rect should remain")
	}
}

func TestGroupItemsNoMatch(t *testing.T) {
	h := simulated(t)
	if _, isErr := h.call("group_items", map[string]any{"uuids": []any{"missing"}}); !isErr {
		t.Error("grouping nothing should fail")
	}
	if _, isErr := h.call("group_items", map[string]any{"uuids": []any{}}); !isErr {
		t.Error("empty uuids should fail")
	}
}

func TestMaskItems(t *testing.T) {
	h := simulated(t)
	var rects []handle
	payload(t, h.mustCall("create_rects", map[string]any{"rects": []any{
		map[string]any{"position": []any{"0", "0"}, "size": []any{"10", "10"}},
		map[string]any{"position": []any{"0", "0"}, "size": []any{"5", "5"}},
	}}), "Created successfully.", &rects)

	got := h.mustCall("mask_items", map[string]any{"masks": []any{
		map[string]any{"maskUuid": rects[1].UUID, "maskedUuids": []any{rects[0].UUID}},
	}})
	if got != "Objects masked." {
		t.Errorf("unexpected reply %q", got)
	}
	if len(listPaths(t, h)) != 2 {
		t.Error("masking should keep both paths")
	}
}

// =============================================================================
// TEXT
// =============================================================================

func TestTextFrames(t *testing.T) {
	h := simulated(t)
	var frames []handle
	payload(t, h.mustCall("create_textframes", map[string]any{"count": 2}), "Placed successfully.", &frames)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}

	h.mustCall("change_textframes", map[string]any{"changes": []any{
		map[string]any{
			"uuid":          frames[0].UUID,
			"text":          "見出し \"quoted\"\nsecond line",
			"fontName":      "Arial-BoldMT",
			"fontSize":      "20Q",
			"justification": "center",
			"colorCmyk":     []any{0, 0, 0, 100},
			"position":      []any{"5mm", "5mm"},
		},
	}})

	h.mustCall("change_characters", map[string]any{
		"uuid": frames[0].UUID,
		"changes": []any{
			map[string]any{"range": map[string]any{"from": 0, "to": 2}, "fontName": "ArialMT", "horizontalScale": 80},
		},
	})

	var listed []struct {
		UUID          string   `json:"uuid"`
		Text          string   `json:"text"`
		FontName      string   `json:"fontName"`
		Justification string   `json:"justification"`
		Position      []string `json:"position"`
	}
	payload(t, h.mustCall("list_textframes", nil), "Retrieved successfully.", &listed)
	var found bool
	for _, f := range listed {
		if f.UUID != frames[0].UUID {
			continue
		}
		found = true
		if f.Text != "見出し \"quoted\"\nsecond line" {
			t.Errorf("text = %q", f.Text)
		}
		// The frame-level font reports the first character, which was changed back.
		if f.FontName != "ArialMT" {
			t.Errorf("fontName = %q", f.FontName)
		}
		if f.Justification != "Justification.CENTER" {
			t.Errorf("justification = %q", f.Justification)
		}
		if !slices.Equal(f.Position, []string{"5mm", "5mm"}) {
			t.Errorf("position = %v", f.Position)
		}
	}
	if !found {
		t.Fatal("changed frame not listed")
	}
}

func TestTextFrameBackslashesSurvive(t *testing.T) {
	h := simulated(t)
	var frames []handle
	payload(t, h.mustCall("create_textframes", map[string]any{"count": 1}), "Placed successfully.", &frames)

	want := `C:\new\table and \"quoted\"`
	h.mustCall("change_textframes", map[string]any{"changes": []any{
		map[string]any{"uuid": frames[0].UUID, "text": want},
	}})

	var listed []struct {
		UUID string `json:"uuid"`
		Text string `json:"text"`
	}
	payload(t, h.mustCall("list_textframes", nil), "Retrieved successfully.", &listed)
	for _, f := range listed {
		if f.UUID == frames[0].UUID {
			if f.Text != want {
				t.Errorf("text = %q, want %q", f.Text, want)
			}
			return
		}
	}
	t.Fatal("changed frame not listed")
}

func TestTextValidation(t *testing.T) {
	h := simulated(t)
	if text, isErr := h.call("change_textframes", map[string]any{"changes": []any{
		map[string]any{"uuid": "x", "justification": "middle"},
	}}); !isErr || !strings.Contains(text, "justification") {
		t.Errorf("expected justification error, got %q", text)
	}
	if _, isErr := h.call("create_textframes", map[string]any{"count": -1}); !isErr {
		t.Error("negative count should fail")
	}
	if _, isErr := h.call("change_characters", map[string]any{"uuid": "x", "changes": []any{
		map[string]any{"range": map[string]any{"from": 3, "to": 1}},
	}}); !isErr {
		t.Error("inverted range should fail")
	}
}

func TestUnknownFontIsHostFailure(t *testing.T) {
	h := simulated(t)
	var frames []handle
	payload(t, h.mustCall("create_textframes", map[string]any{"count": 1}), "Placed successfully.", &frames)

	text, isErr := h.call("change_textframes", map[string]any{"changes": []any{
		map[string]any{"uuid": frames[0].UUID, "fontName": "NoSuchFont"},
	}})
	if !isErr || !strings.Contains(text, "No such element") {
		t.Errorf("expected host failure, got %q", text)
	}
}

func TestListFonts(t *testing.T) {
	h := simulated(t)
	var fonts []struct {
		Name   string `json:"name"`
		Family string `json:"family"`
		Style  string `json:"style"`
	}
	payload(t, h.mustCall("list_fonts", nil), "Retrieved successfully.", &fonts)
	if len(fonts) == 0 || fonts[0].Name == "" || fonts[0].Family == "" {
		t.Errorf("unexpected fonts %+v", fonts)
	}
}

// =============================================================================
// LOCAL
// =============================================================================

func TestCalcExpressions(t *testing.T) {
	h := connect(t, canned.New("unused"))
	var results []struct {
		Expression string `json:"expression"`
		Result     any    `json:"result"`
	}
	payload(t, h.mustCall("calc_expressions", map[string]any{"expressions": []any{"1 + 2", "210 / 2 - 5", "1 / 0", "'a' + 'b'"}}),
		"Calculated successfully.", &results)

	want := []any{float64(3), float64(100), nil, "ab"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i, w := range want {
		if results[i].Result != w {
			t.Errorf("result %d (%s) = %v, want %v", i, results[i].Expression, results[i].Result, w)
		}
	}
}

func TestCalcExpressionsError(t *testing.T) {
	h := connect(t, canned.New("unused"))
	if _, isErr := h.call("calc_expressions", map[string]any{"expressions": []any{"1 +"}}); !isErr {
		t.Error("syntax error should fail the call")
	}
}

func TestCountCharacters(t *testing.T) {
	h := connect(t, canned.New("unused"))
	var counts []struct {
		Line  string `json:"line"`
		Count int    `json:"count"`
	}
	payload(t, h.mustCall("count_characters", map[string]any{"lines": []any{"abc", "日本語", "🎨x", ""}}),
		"Counted successfully.", &counts)
	want := []int{3, 3, 3, 0}
	for i, w := range want {
		if counts[i].Count != w {
			t.Errorf("count(%q) = %d, want %d", counts[i].Line, counts[i].Count, w)
		}
	}
}

func TestHostFailureClassified(t *testing.T) {
	tr := canned.New("")
	tr.Push(canned.Response{Err: &executor.Error{
		Kind:   executor.ErrDispatchFailed,
		Stderr: "execution error: Adobe Illustrator got an error: Error 21: undefined is not an object. (-2700)",
	}})
	h := connect(t, tr)

	text, isErr := h.call("list_fonts", nil)
	if !isErr {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(text, executor.ErrHostScriptFailed.Error()) {
		t.Errorf("unexpected text %q", text)
	}
}
