package htmlsanitize_test

import (
	"testing"

	"github.com/dalemusser/crmhub/internal/app/system/htmlsanitize"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "plain", input: "Acme Corp", want: "Acme Corp"},
		{name: "trims", input: "  Acme Corp  ", want: "Acme Corp"},
		{name: "strips tags", input: "<b>Acme</b> Corp", want: "Acme Corp"},
		{name: "drops script", input: "Acme<script>alert('x')</script>", want: "Acme"},
		{name: "keeps ampersand", input: "Smith & Sons", want: "Smith & Sons"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.PlainText(tt.input); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
