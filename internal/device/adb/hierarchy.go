// internal/device/adb/hierarchy.go
package adb

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/screenpilot/internal/device"
)

// focusedEditable scans a uiautomator window dump for the node that holds
// input focus and accepts text. It returns nil when there is none.
func focusedEditable(dump []byte) (*device.Target, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(trimDumpPreamble(dump)); err != nil {
		return nil, fmt.Errorf("failed to parse window dump: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("window dump is empty")
	}

	for _, node := range doc.FindElements("//node[@focused='true']") {
		class := node.SelectAttrValue("class", "")
		if !isEditableClass(class) {
			continue
		}
		return &device.Target{
			ID:     node.SelectAttrValue("resource-id", ""),
			Class:  class,
			Text:   node.SelectAttrValue("text", ""),
			Bounds: node.SelectAttrValue("bounds", ""),
		}, nil
	}
	return nil, nil
}

func isEditableClass(class string) bool {
	return strings.Contains(class, "EditText") || strings.Contains(class, "AutoCompleteTextView")
}

// trimDumpPreamble drops anything before the XML declaration or root, which
// some uiautomator builds print to the same stream.
func trimDumpPreamble(dump []byte) []byte {
	s := string(dump)
	if i := strings.Index(s, "<?xml"); i > 0 {
		return dump[i:]
	}
	if i := strings.Index(s, "<hierarchy"); i > 0 {
		return dump[i:]
	}
	return dump
}
