package tools

import (
	"context"
	"fmt"
	"slices"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inkbridge/inkbridge/fragment"
)

// CreateTextFramesInput is the argument of create_textframes.
type CreateTextFramesInput struct {
	Count int `json:"count" jsonschema:"Number of text frames to place"`
}

// ListTextFramesInput is the empty argument of list_textframes.
type ListTextFramesInput struct{}

// TextFrameChange updates one text frame. Empty fields are left unchanged;
// a non-nil empty Text clears the contents.
type TextFrameChange struct {
	UUID          string    `json:"uuid" jsonschema:"UUID"`
	Text          *string   `json:"text,omitempty" jsonschema:"Text content"`
	FontName      string    `json:"fontName,omitempty" jsonschema:"Font name"`
	FontSize      string    `json:"fontSize,omitempty" jsonschema:"Font size (specify in mm or Q)"`
	Justification string    `json:"justification,omitempty" jsonschema:"Text alignment direction: left, center, right or justify."`
	ColorCMYK     []float64 `json:"colorCmyk,omitempty" jsonschema:"Text color (array of CMYK values from 0 to 100)"`
	Position      []string  `json:"position,omitempty" jsonschema:"X and Y coordinates (origin at top left, specify in mm or Q)"`
	Size          []string  `json:"size,omitempty" jsonschema:"Width and height (specify in mm or Q)"`
}

// ChangeTextFramesInput is the argument of change_textframes.
type ChangeTextFramesInput struct {
	Changes []TextFrameChange `json:"changes" jsonschema:"Array of UUIDs and attributes of text frames to change"`
}

// CharacterRange selects characters From up to but not including To.
type CharacterRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// CharacterChange restyles the characters in Range.
type CharacterChange struct {
	Range           CharacterRange `json:"range"`
	FontName        string         `json:"fontName,omitempty" jsonschema:"Font name"`
	FontSize        string         `json:"fontSize,omitempty" jsonschema:"Font size (specify in mm or Q)"`
	BaselineShift   string         `json:"baselineShift,omitempty" jsonschema:"Baseline shift (specify in mm or Q)"`
	HorizontalScale *float64       `json:"horizontalScale,omitempty" jsonschema:"Horizontal scale (100 means 100%)"`
	VerticalScale   *float64       `json:"verticalScale,omitempty" jsonschema:"Vertical scale (100 means 100%)"`
	ColorCMYK       []float64      `json:"colorCmyk,omitempty" jsonschema:"Text color (array of CMYK values from 0 to 100)"`
}

// ChangeCharactersInput is the argument of change_characters.
type ChangeCharactersInput struct {
	UUID    string            `json:"uuid"`
	Changes []CharacterChange `json:"changes"`
}

// ListFontsInput is the empty argument of list_fonts.
type ListFontsInput struct{}

var justifications = []string{"left", "center", "right", "justify"}

var (
	createTextFramesFragments = []string{fragment.GetDocument, fragment.CreateUUID, fragment.JSON}
	listTextFramesFragments   = []string{fragment.GetDocument, fragment.EnsureIdentifier, fragment.PtToMm, fragment.JSON}
	changeTextFramesFragments = []string{fragment.GetPageItem, fragment.ToPt}
	changeCharactersFragments = []string{fragment.GetPageItem, fragment.ToPt}
	listFontsFragments        = []string{fragment.JSON}
)

func (c *Catalog) registerText(s *mcp.Server) {
	addHost(c, s, "create_textframes", "Place multiple text frames in the document.", createTextFramesFragments, c.createTextFrames)
	addHost(c, s, "list_textframes", "Get information of existing text frames", listTextFramesFragments, c.listTextFrames)
	addHost(c, s, "change_textframes", "Change attributes of multiple text frames", changeTextFramesFragments, c.changeTextFrames)
	addHost(c, s, "change_characters", "Change attributes of multiple character ranges in a single text frame", changeCharactersFragments, c.changeCharacters)
	addHost(c, s, "list_fonts", "Get list of available fonts", listFontsFragments, c.listFonts)
}

func (c *Catalog) createTextFrames(ctx context.Context, in CreateTextFramesInput) (string, error) {
	if in.Count < 0 {
		return "", invalid("count must not be negative, got %d", in.Count)
	}
	b, err := body(`
var doc = getDocument();
var count = %s;
var result = [];
for (var i = 0; i < count; i++) {
  var textFrame = doc.textFrames.add();
  textFrame.note = createUUID();
  result.push({ uuid: textFrame.note });
}
JSON.stringify(result);
`, in.Count)
	if err != nil {
		return "", err
	}
	out, err := c.execute(ctx, createTextFramesFragments, b)
	if err != nil {
		return "", err
	}
	return withOutput("Placed successfully.", out), nil
}

func (c *Catalog) listTextFrames(ctx context.Context, _ ListTextFramesInput) (string, error) {
	out, err := c.execute(ctx, listTextFramesFragments, `
var doc = getDocument();
var result = [];
for (var i = 0; i < doc.textFrames.length; i++) {
  var item = doc.textFrames[i];
  var attrs = item.textRange.characterAttributes;
  result.push({
    uuid: ensureIdentifier(item),
    text: item.contents,
    fontName: attrs.textFont.name,
    fontSize: attrs.size,
    justification: String(item.textRange.paragraphAttributes.justification),
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

func (c *Catalog) changeTextFrames(ctx context.Context, in ChangeTextFramesInput) (string, error) {
	for i, ch := range in.Changes {
		if ch.UUID == "" {
			return "", invalid("changes[%d].uuid is required", i)
		}
		if ch.Justification != "" && !slices.Contains(justifications, ch.Justification) {
			return "", invalid("changes[%d].justification must be one of %v, got %q", i, justifications, ch.Justification)
		}
		if err := checkCMYK(fmt.Sprintf("changes[%d].colorCmyk", i), ch.ColorCMYK); err != nil {
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
var justifications = {
  left: Justification.LEFT,
  center: Justification.CENTER,
  right: Justification.RIGHT,
  justify: Justification.FULLJUSTIFY
};
for (var i = 0; i < changes.length; i++) {
  var ch = changes[i];
  var item = getPageItem(ch.uuid);
  if (!item) {
    throw new Error("No item with UUID " + ch.uuid);
  }
  if (ch.text !== undefined) {
    item.contents = ch.text;
  }
  if (ch.fontName) {
    item.textRange.characterAttributes.textFont = app.textFonts.getByName(ch.fontName);
  }
  if (ch.fontSize) {
    item.textRange.characterAttributes.size = toPt(ch.fontSize);
  }
  if (ch.justification) {
    item.paragraphs[0].paragraphAttributes.justification = justifications[ch.justification];
  }
  if (ch.colorCmyk) {
    var cmyk = new CMYKColor();
    cmyk.cyan = ch.colorCmyk[0];
    cmyk.magenta = ch.colorCmyk[1];
    cmyk.yellow = ch.colorCmyk[2];
    cmyk.black = ch.colorCmyk[3];
    item.textRange.characterAttributes.fillColor = cmyk;
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
	if _, err := c.execute(ctx, changeTextFramesFragments, b); err != nil {
		return "", err
	}
	return "Changed successfully.", nil
}

func (c *Catalog) changeCharacters(ctx context.Context, in ChangeCharactersInput) (string, error) {
	if in.UUID == "" {
		return "", invalid("uuid is required")
	}
	for i, ch := range in.Changes {
		if ch.Range.From < 0 || ch.Range.To < ch.Range.From {
			return "", invalid("changes[%d].range must satisfy 0 <= from <= to, got %d..%d", i, ch.Range.From, ch.Range.To)
		}
		if err := checkCMYK(fmt.Sprintf("changes[%d].colorCmyk", i), ch.ColorCMYK); err != nil {
			return "", err
		}
	}
	b, err := body(`
var item = getPageItem(%s);
if (!item) {
  throw new Error("No text frame with the given UUID");
}
var changes = %s;
for (var i = 0; i < changes.length; i++) {
  var ch = changes[i];
  var chars = item.characters.slice(ch.range.from, ch.range.to);
  for (var j = 0; j < chars.length; j++) {
    var charAttr = chars[j].characterAttributes;
    if (ch.fontName) {
      charAttr.textFont = app.textFonts.getByName(ch.fontName);
    }
    if (ch.fontSize) {
      charAttr.size = toPt(ch.fontSize);
    }
    if (ch.baselineShift) {
      charAttr.baselineShift = toPt(ch.baselineShift);
    }
    if (ch.horizontalScale !== undefined) {
      charAttr.horizontalScale = ch.horizontalScale;
    }
    if (ch.verticalScale !== undefined) {
      charAttr.verticalScale = ch.verticalScale;
    }
    if (ch.colorCmyk) {
      var cmyk = new CMYKColor();
      cmyk.cyan = ch.colorCmyk[0];
      cmyk.magenta = ch.colorCmyk[1];
      cmyk.yellow = ch.colorCmyk[2];
      cmyk.black = ch.colorCmyk[3];
      charAttr.fillColor = cmyk;
    }
  }
}
`, in.UUID, nonNil(in.Changes))
	if err != nil {
		return "", err
	}
	if _, err := c.execute(ctx, changeCharactersFragments, b); err != nil {
		return "", err
	}
	return "Changed successfully.", nil
}

func (c *Catalog) listFonts(ctx context.Context, _ ListFontsInput) (string, error) {
	out, err := c.execute(ctx, listFontsFragments, `
var fonts = app.textFonts;
var result = [];
for (var i = 0; i < fonts.length; i++) {
  result.push({ name: fonts[i].name, family: fonts[i].family, style: fonts[i].style });
}
JSON.stringify(result);
`)
	if err != nil {
		return "", err
	}
	return withOutput("Retrieved successfully.", out), nil
}
