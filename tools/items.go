package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inkbridge/inkbridge/fragment"
)

// UUIDsInput names page items by identifier. It is shared by select_items,
// group_items and remove_items.
type UUIDsInput struct {
	UUIDs []string `json:"uuids" jsonschema:"Array of UUIDs"`
}

// Mask clips MaskedUUIDs with the path MaskUUID.
type Mask struct {
	MaskUUID    string   `json:"maskUuid" jsonschema:"UUID of the path to be used as a mask"`
	MaskedUUIDs []string `json:"maskedUuids" jsonschema:"Array of UUIDs of objects to be masked"`
}

// MaskItemsInput is the argument of mask_items.
type MaskItemsInput struct {
	Masks []Mask `json:"masks" jsonschema:"Mask information"`
}

var (
	selectItemsFragments = []string{fragment.FindPageItems}
	groupItemsFragments  = []string{fragment.GetDocument, fragment.FindPageItems, fragment.EnsureIdentifier, fragment.JSON}
	removeItemsFragments = []string{fragment.FindPageItems}
	maskItemsFragments   = []string{fragment.GetDocument, fragment.GetPageItem}
)

func (c *Catalog) registerItems(s *mcp.Server) {
	addHost(c, s, "select_items", "Select multiple objects", selectItemsFragments, c.selectItems)
	addHost(c, s, "group_items", "Group multiple objects", groupItemsFragments, c.groupItems)
	addHost(c, s, "remove_items", "Remove multiple objects", removeItemsFragments, c.removeItems)
	addHost(c, s, "mask_items", "Mask multiple objects", maskItemsFragments, c.maskItems)
}

func (c *Catalog) selectItems(ctx context.Context, in UUIDsInput) (string, error) {
	b, err := body(`
var items = findPageItems(%s);
for (var i = 0; i < items.length; i++) {
  items[i].selected = true;
}
items.length;
`, nonNil(in.UUIDs))
	if err != nil {
		return "", err
	}
	if _, err := c.execute(ctx, selectItemsFragments, b); err != nil {
		return "", err
	}
	return "Objects selected.", nil
}

func (c *Catalog) groupItems(ctx context.Context, in UUIDsInput) (string, error) {
	if len(in.UUIDs) == 0 {
		return "", invalid("uuids must not be empty")
	}
	b, err := body(`
var doc = getDocument();
var items = findPageItems(%s);
if (items.length === 0) {
  throw new Error("No items match the given UUIDs");
}
var group = doc.groupItems.add();
for (var i = items.length - 1; i >= 0; i--) {
  items[i].moveToBeginning(group);
}
JSON.stringify({ uuid: ensureIdentifier(group) });
`, in.UUIDs)
	if err != nil {
		return "", err
	}
	out, err := c.execute(ctx, groupItemsFragments, b)
	if err != nil {
		return "", err
	}
	return withOutput("Objects grouped.", out), nil
}

func (c *Catalog) removeItems(ctx context.Context, in UUIDsInput) (string, error) {
	b, err := body(`
var items = findPageItems(%s);
for (var i = 0; i < items.length; i++) {
  items[i].remove();
}
items.length;
`, nonNil(in.UUIDs))
	if err != nil {
		return "", err
	}
	if _, err := c.execute(ctx, removeItemsFragments, b); err != nil {
		return "", err
	}
	return "Objects removed.", nil
}

func (c *Catalog) maskItems(ctx context.Context, in MaskItemsInput) (string, error) {
	for i, m := range in.Masks {
		if m.MaskUUID == "" {
			return "", invalid("masks[%d].maskUuid is required", i)
		}
	}
	b, err := body(`
var doc = getDocument();
var masks = %s;
function requireItem(uuid) {
  var item = getPageItem(uuid);
  if (!item) {
    throw new Error("No item with UUID " + uuid);
  }
  return item;
}
for (var i = 0; i < masks.length; i++) {
  var maskInfo = masks[i];
  var group = doc.groupItems.add();
  for (var j = 0; j < maskInfo.maskedUuids.length; j++) {
    requireItem(maskInfo.maskedUuids[j]).moveToBeginning(group);
  }
  var maskItem = requireItem(maskInfo.maskUuid);
  maskItem.moveToBeginning(group);
  maskItem.clipping = true;
  group.clipped = true;
}
`, maskInputs(in.Masks))
	if err != nil {
		return "", err
	}
	if _, err := c.execute(ctx, maskItemsFragments, b); err != nil {
		return "", err
	}
	return "Objects masked.", nil
}

func maskInputs(masks []Mask) []Mask {
	out := make([]Mask, len(masks))
	for i, m := range masks {
		m.MaskedUUIDs = nonNil(m.MaskedUUIDs)
		out[i] = m
	}
	return out
}
