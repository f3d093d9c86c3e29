package classify

import "testing"

func TestParseEmbedding(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []float64
	}{
		{
			name: "openai shape",
			body: `{"data":[{"embedding":[0.1,0.2,0.3]}]}`,
			want: []float64{0.1, 0.2, 0.3},
		},
		{
			name: "ollama embeddings shape",
			body: `{"embeddings":[[1,2]]}`,
			want: []float64{1, 2},
		},
		{
			name: "ollama embedding shape",
			body: `{"embedding":[0.5]}`,
			want: []float64{0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEmbedding([]byte(tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("vec[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseEmbeddingMissingVector(t *testing.T) {
	for _, body := range []string{`{}`, `{"data":[]}`, `{"embedding":[]}`, `not json`} {
		if _, err := parseEmbedding([]byte(body)); err == nil {
			t.Fatalf("expected error for body %q", body)
		}
	}
}
