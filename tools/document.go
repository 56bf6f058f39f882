package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inkbridge/inkbridge/fragment"
)

// OpenDocumentInput is the argument of open_document.
type OpenDocumentInput struct {
	Path string `json:"path" jsonschema:"Absolute path of the document to open"`
}

// CreateImagesInput is the argument of create_images. Each path is placed
// as a linked image.
type CreateImagesInput struct {
	Paths []string `json:"paths" jsonschema:"Image paths"`
}

// ListImagesInput is the empty argument of list_images.
type ListImagesInput struct{}

// ImageChange updates one image. Empty fields are left unchanged.
type ImageChange struct {
	UUID                string `json:"uuid" jsonschema:"UUID"`
	Path                string `json:"path,omitempty" jsonschema:"Image path"`
	X                   string `json:"x,omitempty" jsonschema:"X coordinate (origin at top left, specify in mm or Q)"`
	Y                   string `json:"y,omitempty" jsonschema:"Y coordinate (origin at top left, specify in mm or Q)"`
	Width               string `json:"width,omitempty" jsonschema:"Width (specify in mm or Q)"`
	Height              string `json:"height,omitempty" jsonschema:"Height (specify in mm or Q)"`
	MaintainAspectRatio bool   `json:"maintainAspectRatio,omitempty" jsonschema:"Whether to maintain aspect ratio"`
}

// ChangeImagesInput is the argument of change_images.
type ChangeImagesInput struct {
	Changes []ImageChange `json:"changes" jsonschema:"Array of UUIDs and attributes of images to change"`
}

var (
	openDocumentFragments = []string{}
	createImagesFragments = []string{fragment.GetDocument, fragment.CreateUUID, fragment.JSON}
	listImagesFragments   = []string{fragment.GetDocument, fragment.EnsureIdentifier, fragment.PtToMm, fragment.JSON}
	changeImagesFragments = []string{fragment.GetPageItem, fragment.ToPt}
)

func (c *Catalog) registerDocument(s *mcp.Server) {
	addHost(c, s, "open_document", "Open a document", openDocumentFragments, c.openDocument)
	addHost(c, s, "create_images", "Places multiple images in the document.", createImagesFragments, c.createImages)
	addHost(c, s, "list_images", "Gets information of existing images.", listImagesFragments, c.listImages)
	addHost(c, s, "change_images", "Changes attributes of multiple images.", changeImagesFragments, c.changeImages)
}

func (c *Catalog) openDocument(ctx context.Context, in OpenDocumentInput) (string, error) {
	if in.Path == "" {
		return "", invalid("path is required")
	}
	b, err := body(`
var doc = app.open(new File(%s));
doc.name;
`, in.Path)
	if err != nil {
		return "", err
	}
	if _, err := c.execute(ctx, openDocumentFragments, b); err != nil {
		return "", err
	}
	return "Document opened.", nil
}

func (c *Catalog) createImages(ctx context.Context, in CreateImagesInput) (string, error) {
	b, err := body(`
var doc = getDocument();
var paths = %s;
var result = [];
for (var i = 0; i < paths.length; i++) {
  var image = doc.placedItems.add();
  image.file = new File(paths[i]);
  image.note = createUUID();
  result.push({ uuid: image.note });
}
JSON.stringify(result);
`, nonNil(in.Paths))
	if err != nil {
		return "", err
	}
	out, err := c.execute(ctx, createImagesFragments, b)
	if err != nil {
		return "", err
	}
	return withOutput("Placed successfully.", out), nil
}

func (c *Catalog) listImages(ctx context.Context, _ ListImagesInput) (string, error) {
	out, err := c.execute(ctx, listImagesFragments, `
var doc = getDocument();
var result = [];
for (var i = 0; i < doc.placedItems.length; i++) {
  var item = doc.placedItems[i];
  result.push({
    uuid: ensureIdentifier(item),
    path: item.file ? item.file.fsName : null,
    x: ptToMm(item.left),
    y: ptToMm(-item.top),
    width: ptToMm(item.width),
    height: ptToMm(item.height),
    selected: item.selected
  });
}
JSON.stringify(result);
`)
	if err != nil {
		return "", err
	}
	return withOutput("Retrieved successfully.", out), nil
}

func (c *Catalog) changeImages(ctx context.Context, in ChangeImagesInput) (string, error) {
	for i, ch := range in.Changes {
		if ch.UUID == "" {
			return "", invalid("changes[%d].uuid is required", i)
		}
	}
	b, err := body(`
var inputs = %s;
for (var i = 0; i < inputs.length; i++) {
  var input = inputs[i];
  var item = getPageItem(input.uuid);
  if (!item) {
    throw new Error("No item with UUID " + input.uuid);
  }
  if (input.path) {
    item.file = new File(input.path);
  }
  if (input.x) {
    item.left = toPt(input.x);
  }
  if (input.y) {
    item.top = -toPt(input.y);
  }
  if (input.width) {
    var afterWidth = toPt(input.width);
    if (input.maintainAspectRatio) {
      item.height = afterWidth * (item.height / item.width);
    }
    item.width = afterWidth;
  }
  if (input.height) {
    var afterHeight = toPt(input.height);
    if (input.maintainAspectRatio) {
      item.width = afterHeight * (item.width / item.height);
    }
    item.height = afterHeight;
  }
}
`, nonNil(in.Changes))
	if err != nil {
		return "", err
	}
	if _, err := c.execute(ctx, changeImagesFragments, b); err != nil {
		return "", err
	}
	return "Changed successfully.", nil
}

// nonNil keeps a missing list encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
