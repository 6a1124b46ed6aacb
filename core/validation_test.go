package core

import (
	"errors"
	"testing"
)

func TestValidateKinds(t *testing.T) {
	tests := []struct {
		name    string
		kinds   []EntityKind
		wantErr error
	}{
		{name: "defaults", kinds: DefaultKinds(), wantErr: nil},
		{name: "single", kinds: []EntityKind{"organizations"}, wantErr: nil},
		{name: "empty set", kinds: nil, wantErr: ErrInvalidKinds},
		{name: "blank kind", kinds: []EntityKind{"dates", " "}, wantErr: ErrEmptyKind},
		{name: "duplicate", kinds: []EntityKind{"dates", "persons", "dates"}, wantErr: ErrDuplicateKind},
		{name: "dotted", kinds: []EntityKind{"entities.dates"}, wantErr: ErrInvalidKinds},
		{name: "comma", kinds: []EntityKind{"dates,persons"}, wantErr: ErrInvalidKinds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKinds(tt.kinds)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateKinds() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateKinds() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePipelineDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		desc    PipelineDescriptor
		wantErr bool
	}{
		{"valid", PipelineDescriptor{Name: "wordpress_nlp_ingester", SourceField: "post_content"}, false},
		{"explicit processors", PipelineDescriptor{Name: "p", Processors: []Processor{{Type: "opennlp", Field: "f"}}}, false},
		{"no name", PipelineDescriptor{SourceField: "post_content"}, true},
		{"unsafe name", PipelineDescriptor{Name: "a/b", SourceField: "post_content"}, true},
		{"no source", PipelineDescriptor{Name: "p"}, true},
		{"untyped processor", PipelineDescriptor{Name: "p", Processors: []Processor{{Field: "f"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePipelineDescriptor(tt.desc)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePipelineDescriptor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPipeline) {
				t.Errorf("error should wrap ErrInvalidPipeline, got %v", err)
			}
		})
	}
}

func TestValidateMappingDescriptor(t *testing.T) {
	valid := NewMappingDescriptor("posts", DefaultKinds())
	if err := ValidateMappingDescriptor(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		desc MappingDescriptor
	}{
		{"no index", MappingDescriptor{Fields: valid.Fields}},
		{"no fields", MappingDescriptor{Index: "posts"}},
		{"foreign field", MappingDescriptor{Index: "posts", Fields: map[string]FieldMapping{"title": {Type: "text"}}}},
		{"bare prefix", MappingDescriptor{Index: "posts", Fields: map[string]FieldMapping{"entities.": {Type: "text"}}}},
		{"untyped", MappingDescriptor{Index: "posts", Fields: map[string]FieldMapping{"entities.dates": {}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateMappingDescriptor(tt.desc); !errors.Is(err, ErrInvalidMapping) {
				t.Errorf("ValidateMappingDescriptor() error = %v, want ErrInvalidMapping", err)
			}
		})
	}
}
