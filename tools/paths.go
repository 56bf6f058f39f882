package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inkbridge/inkbridge/fragment"
)

// Rect is one rectangle to draw, as [x, y] and [width, height] pairs.
type Rect struct {
	Position []string `json:"position" jsonschema:"x and y coordinates. Origin is at top left. Specify in mm or Q."`
	Size     []string `json:"size" jsonschema:"Width and height. Specify in mm or Q."`
}

// CreateRectsInput is the argument of create_rects.
type CreateRectsInput struct {
	Rects []Rect `json:"rects"`
}

// LinePoints holds the [x, y] start and end of a line.
type LinePoints struct {
	From []string `json:"from"`
	To   []string `json:"to"`
}

// Line is one straight line to draw.
type Line struct {
	Points LinePoints `json:"points" jsonschema:"x and y coordinates of start and end points. Origin is at top left. Specify in mm or Q."`
}

// CreateLinesInput is the argument of create_lines.
type CreateLinesInput struct {
	Lines []Line `json:"lines"`
}

// ListPathItemsInput is the empty argument of list_pathitems.
type ListPathItemsInput struct{}

// PathChange updates one path item. Empty fields are left unchanged.
type PathChange struct {
	UUID        string    `json:"uuid"`
	FillCMYK    []float64 `json:"fillCmyk,omitempty" jsonschema:"Fill color. Specify values from 0 to 100."`
	StrokeCMYK  []float64 `json:"strokeCmyk,omitempty" jsonschema:"Stroke color. Specify values from 0 to 100."`
	StrokeWidth string    `json:"strokeWidth,omitempty" jsonschema:"Stroke width. Specify in mm or Q."`
	Position    []string  `json:"position,omitempty" jsonschema:"x and y coordinates. Origin is at top left. Specify in mm or Q."`
	Size        []string  `json:"size,omitempty" jsonschema:"Width and height. Specify in mm or Q."`
}

// ChangePathItemsInput is the argument of change_pathitems.
type ChangePathItemsInput struct {
	Changes []PathChange `json:"changes" jsonschema:"Array of UUIDs and attributes of paths to change"`
}

var (
	createRectsFragments     = []string{fragment.GetDocument, fragment.ToPt, fragment.CreateUUID, fragment.JSON}
	createLinesFragments     = []string{fragment.GetDocument, fragment.ToPt, fragment.CreateUUID, fragment.JSON}
	listPathItemsFragments   = []string{fragment.GetDocument, fragment.EnsureIdentifier, fragment.PtToMm, fragment.JSON}
	changePathItemsFragments = []string{fragment.GetPageItem, fragment.ToPt}
)

func (c *Catalog) registerPaths(s *mcp.Server) {
	addHost(c, s, "create_rects", "Place multiple paths representing rectangles in the document", createRectsFragments, c.createRects)
	addHost(c, s, "create_lines", "Place multiple paths representing lines in the document.", createLinesFragments, c.createLines)
	addHost(c, s, "list_pathitems", "Get information of existing paths", listPathItemsFragments, c.listPathItems)
	addHost(c, s, "change_pathitems", "Change attributes of multiple paths.", changePathItemsFragments, c.changePathItems)
}

func (c *Catalog) createRects(ctx context.Context, in CreateRectsInput) (string, error) {
	for i, r := range in.Rects {
		if err := checkPair(fmt.Sprintf("rects[%d].position", i), r.Position); err != nil {
			return "", err
		}
		if err := checkPair(fmt.Sprintf("rects[%d].size", i), r.Size); err != nil {
			return "", err
		}
	}
	b, err := body(`
var doc = getDocument();
var rects = %s;
var result = [];
for (var i = 0; i < rects.length; i++) {
  var r = rects[i];
  var rect = doc.pathItems.rectangle(
    -toPt(r.position[1]),
    toPt(r.position[0]),
    toPt(r.size[0]),
    toPt(r.size[1])
  );
  rect.note = createUUID();
  result.push({ uuid: rect.note });
}
JSON.stringify(result);
`, nonNil(in.Rects))
	if err != nil {
		return "", err
	}
	out, err := c.execute(ctx, createRectsFragments, b)
	if err != nil {
		return "", err
	}
	return withOutput("Created successfully.", out), nil
}

func (c *Catalog) createLines(ctx context.Context, in CreateLinesInput) (string, error) {
	for i, l := range in.Lines {
		if err := checkPair(fmt.Sprintf("lines[%d].points.from", i), l.Points.From); err != nil {
			return "", err
		}
		if err := checkPair(fmt.Sprintf("lines[%d].points.to", i), l.Points.To); err != nil {
			return "", err
		}
	}
	b, err := body(`
var doc = getDocument();
var lines = %s;
var result = [];
for (var i = 0; i < lines.length; i++) {
  var p = lines[i].points;
  var line = doc.pathItems.add();
  line.note = createUUID();
  line.stroked = true;
  line.filled = false;
  line.setEntirePath([
    [toPt(p.from[0]), -toPt(p.from[1])],
    [toPt(p.to[0]), -toPt(p.to[1])]
  ]);
  result.push({ uuid: line.note });
}
JSON.stringify(result);
`, nonNil(in.Lines))
	if err != nil {
		return "", err
	}
	out, err := c.execute(ctx, createLinesFragments, b)
	if err != nil {
		return "", err
	}
	return withOutput("Created successfully.", out), nil
}

func (c *Catalog) listPathItems(ctx context.Context, _ ListPathItemsInput) (string, error) {
	out, err := c.execute(ctx, listPathItemsFragments, `
var doc = getDocument();
var result = [];
for (var i = 0; i < doc.pathItems.length; i++) {
  var item = doc.pathItems[i];
  result.push({
    uuid: ensureIdentifier(item),
    position: [ptToMm(item.left), ptToMm(-item.top)],
    size: [ptToMm(item.width), ptToMm(item.height)],
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

func (c *Catalog) changePathItems(ctx context.Context, in ChangePathItemsInput) (string, error) {
	for i, ch := range in.Changes {
		if ch.UUID == "" {
			return "", invalid("changes[%d].uuid is required", i)
		}
		if err := checkCMYK(fmt.Sprintf("changes[%d].fillCmyk", i), ch.FillCMYK); err != nil {
			return "", err
		}
		if err := checkCMYK(fmt.Sprintf("changes[%d].strokeCmyk", i), ch.StrokeCMYK); err != nil {
			return "", err
		}
		if ch.Position != nil {
			if err := checkPair(fmt.Sprintf("changes[%d].position", i), ch.Position); err != nil {
				return "", err
			}
		}
		if ch.Size != nil {
			if err := checkPair(fmt.Sprintf("changes[%d].size", i), ch.Size); err != nil {
				return "", err
			}
		}
	}
	b, err := body(`
var changes = %s;
function cmykColor(v) {
  var cmyk = new CMYKColor();
  cmyk.cyan = v[0];
  cmyk.magenta = v[1];
  cmyk.yellow = v[2];
  cmyk.black = v[3];
  return cmyk;
}
for (var i = 0; i < changes.length; i++) {
  var ch = changes[i];
  var item = getPageItem(ch.uuid);
  if (!item) {
    throw new Error("No item with UUID " + ch.uuid);
  }
  if (ch.fillCmyk) {
    item.filled = true;
    item.fillColor = cmykColor(ch.fillCmyk);
  }
  if (ch.strokeCmyk) {
    item.stroked = true;
    item.strokeColor = cmykColor(ch.strokeCmyk);
  }
  if (ch.strokeWidth) {
    item.strokeWidth = toPt(ch.strokeWidth);
  }
  if (ch.position) {
    item.position = [toPt(ch.position[0]), -toPt(ch.position[1])];
  }
  if (ch.size) {
    item.width = toPt(ch.size[0]);
    item.height = toPt(ch.size[1]);
  }
}
`, nonNil(in.Changes))
	if err != nil {
		return "", err
	}
	if _, err := c.execute(ctx, changePathItemsFragments, b); err != nil {
		return "", err
	}
	return "Changed successfully.", nil
}
