package patch

import (
	"strings"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantOK        bool
		wantPath      string
		wantContent   string
		wantSanitized string
	}{
		{
			name:          "well formed",
			text:          "Here you go.\n<file_modification><file_path>src/a.txt</file_path><content>hello</content></file_modification>",
			wantOK:        true,
			wantPath:      "src/a.txt",
			wantContent:   "hello",
			wantSanitized: "Here you go.",
		},
		{
			name:          "wrapper newlines trimmed once",
			text:          "<file_modification>\n<file_path> main.go </file_path>\n<content>\n\npackage main\n\n</content>\n</file_modification>\nDone.",
			wantOK:        true,
			wantPath:      "main.go",
			wantContent:   "\npackage main\n",
			wantSanitized: "Done.",
		},
		{
			name:          "indentation kept verbatim",
			text:          "<file_modification><file_path>a.py</file_path><content>  def f():\n\treturn 1  </content></file_modification>",
			wantOK:        true,
			wantPath:      "a.py",
			wantContent:   "  def f():\n\treturn 1  ",
			wantSanitized: "",
		},
		{
			name:          "empty content is a directive",
			text:          "<file_modification><file_path>empty.txt</file_path><content></content></file_modification>",
			wantOK:        true,
			wantPath:      "empty.txt",
			wantContent:   "",
			wantSanitized: "",
		},
		{
			name:          "first block applied, every block removed",
			text:          "a <file_modification><file_path>1</file_path><content>x</content></file_modification> b <file_modification><file_path>2</file_path><content>y</content></file_modification>",
			wantOK:        true,
			wantPath:      "1",
			wantContent:   "x",
			wantSanitized: "a  b",
		},
		{
			name:          "text between blocks kept",
			text:          "A\n<file_modification><file_path>a.txt</file_path><content>one</content></file_modification>\nB\n<file_modification><file_path>b.txt</file_path><content>two</content></file_modification>\nC",
			wantOK:        true,
			wantPath:      "a.txt",
			wantContent:   "one",
			wantSanitized: "A\n\nB\n\nC",
		},
		{
			name:          "trailing unterminated block kept",
			text:          "<file_modification><file_path>a</file_path><content>x</content></file_modification>rest <file_modification><file_path>b",
			wantOK:        true,
			wantPath:      "a",
			wantContent:   "x",
			wantSanitized: "rest <file_modification><file_path>b",
		},
		{
			name:          "missing content tag",
			text:          "Sure.\n<file_modification><file_path>x.txt</file_path></file_modification>",
			wantSanitized: "Sure.\n<file_modification><file_path>x.txt</file_path></file_modification>",
		},
		{
			name:          "missing path tag",
			text:          "<file_modification><content>x</content></file_modification>",
			wantSanitized: "<file_modification><content>x</content></file_modification>",
		},
		{
			name:          "blank path",
			text:          "<file_modification><file_path>  </file_path><content>x</content></file_modification>",
			wantSanitized: "<file_modification><file_path>  </file_path><content>x</content></file_modification>",
		},
		{
			name:          "unterminated wrapper",
			text:          "<file_modification><file_path>x</file_path><content>y</content>",
			wantSanitized: "<file_modification><file_path>x</file_path><content>y</content>",
		},
		{
			name:          "no directive",
			text:          "  just talk  ",
			wantSanitized: "  just talk  ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			directive, sanitized, ok := Extract(tt.text)

			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if sanitized != tt.wantSanitized {
				t.Errorf("sanitized = %q, want %q", sanitized, tt.wantSanitized)
			}
			if !ok {
				return
			}
			if strings.Contains(sanitized, closeTag) {
				t.Errorf("sanitized text still carries a complete block: %q", sanitized)
			}
			if directive.Path != tt.wantPath {
				t.Errorf("path = %q, want %q", directive.Path, tt.wantPath)
			}
			if directive.Content != tt.wantContent {
				t.Errorf("content = %q, want %q", directive.Content, tt.wantContent)
			}
		})
	}
}
