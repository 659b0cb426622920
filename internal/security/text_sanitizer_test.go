package security

import (
	"strings"
	"testing"
)

// TestClean_StripsMarkup は全てのタグが除去されることを検証する。
func TestClean_StripsMarkup(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "プレーンテキストはそのまま",
			input: "Chocolate Truffle",
			want:  "Chocolate Truffle",
		},
		{
			name:  "強調タグが除去される",
			input: "<b>Red</b> Velvet",
			want:  "Red Velvet",
		},
		{
			name:  "scriptタグは中身ごと除去される",
			input: `Vanilla<script>alert("x")</script>`,
			want:  "Vanilla",
		},
		{
			name:  "属性付きタグが除去される",
			input: `<img src="x" onerror="alert(1)">Mango`,
			want:  "Mango",
		},
		{
			name:  "前後の空白が除去される",
			input: "  Pune  ",
			want:  "Pune",
		},
		{
			name:  "アンパサンドは文字として残る",
			input: "Black & White",
			want:  "Black & White",
		},
		{
			name:  "文字実体で書かれたタグも除去される",
			input: "&lt;b&gt;Lemon&lt;/b&gt;",
			want:  "Lemon",
		},
		{
			name:  "空文字列",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Clean(tt.input)
			if got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestClean_OnlyMarkup_ReturnsEmpty はタグのみの入力が空文字列になることを検証する。
func TestClean_OnlyMarkup_ReturnsEmpty(t *testing.T) {
	sanitizer := NewTextSanitizer()

	got := sanitizer.Clean("<div><span></span></div>")
	if got != "" {
		t.Errorf("Clean() = %q, want empty", got)
	}
}

// TestClean_Idempotent は同一入力に対して同一出力を返すことを検証する。
func TestClean_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()
	input := `<p>Butterscotch <a href="https://example.com">cake</a></p>`

	first := sanitizer.Clean(input)
	second := sanitizer.Clean(first)
	if first != second {
		t.Errorf("Clean is not idempotent: %q then %q", first, second)
	}
	if strings.Contains(first, "<") {
		t.Errorf("Clean() = %q, should not contain markup", first)
	}
}

// TestTextSanitizer_ImplementsInterface はインターフェースを満たすことを検証する。
func TestTextSanitizer_ImplementsInterface(t *testing.T) {
	var _ TextSanitizer = NewTextSanitizer()
}
