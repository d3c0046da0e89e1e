package model

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/potato-api/internal/config"
	"github.com/Brownie44l1/potato-api/internal/preprocess"
)

func TestMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		wantErr bool
	}{
		{"static batch", Metadata{InputShape: []int64{1, 256, 256, 3}, OutputShape: []int64{1, 3}}, false},
		{"dynamic batch", Metadata{InputShape: []int64{-1, 256, 256, 3}, OutputShape: []int64{-1, 3}}, false},
		{"dynamic width", Metadata{InputShape: []int64{-1, 256, 256, 3}, OutputShape: []int64{-1, -1}}, false},
		{"channels first", Metadata{InputShape: []int64{1, 3, 256, 256}, OutputShape: []int64{1, 3}}, true},
		{"wrong rank", Metadata{InputShape: []int64{256, 256, 3}, OutputShape: []int64{1, 3}}, true},
		{"too many classes", Metadata{InputShape: []int64{1, 256, 256, 3}, OutputShape: []int64{1, 4}}, true},
		{"flat output", Metadata{InputShape: []int64{1, 256, 256, 3}, OutputShape: []int64{3}}, true},
	}

	for _, tt := range tests {
		width, err := tt.meta.validate(3)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: validate error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil && width != 3 {
			t.Errorf("%s: expected width 3, got %d", tt.name, width)
		}
	}
}

func TestLoadMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_metadata.json")
	body := `{"input_name":"input_1","output_name":"dense_1","input_shape":[1,256,256,3],"output_shape":[1,3]}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	meta, err := loadMetadata(path)
	if err != nil {
		t.Fatalf("loadMetadata failed: %v", err)
	}
	if meta.InputName != "input_1" || meta.OutputName != "dense_1" {
		t.Errorf("Unexpected names %q, %q", meta.InputName, meta.OutputName)
	}
	if len(meta.InputShape) != 4 || meta.OutputShape[1] != 3 {
		t.Errorf("Unexpected shapes %v, %v", meta.InputShape, meta.OutputShape)
	}

	// No path means everything comes from the graph.
	empty, err := loadMetadata("")
	if err != nil || empty.InputName != "" {
		t.Errorf("Expected empty metadata without error, got %+v, %v", empty, err)
	}

	if _, err := loadMetadata(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for a missing metadata file")
	}
}

// TestONNXServerIntegration needs the ONNX Runtime shared library and an
// exported classifier, so it only runs when both are provided.
func TestONNXServerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	lib := os.Getenv("ONNXRUNTIME_LIB_PATH")
	modelPath := os.Getenv("TEST_ONNX_MODEL")
	if lib == "" || modelPath == "" {
		t.Skip("ONNXRUNTIME_LIB_PATH and TEST_ONNX_MODEL not set")
	}

	cfg := config.ModelConfig{
		Backend:     config.BackendONNX,
		Path:        modelPath,
		LibraryPath: lib,
	}
	p, err := Open(context.Background(), cfg, len(DefaultClasses), quietLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	var pixels preprocess.PixelArray
	out, err := p.Predict(context.Background(), pixels.Batch())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(out) != 1 || len(out[0]) != len(DefaultClasses) {
		t.Fatalf("Unexpected output shape: %d rows", len(out))
	}

	if _, err := Labels(DefaultClasses).Map(out[0]); err != nil {
		t.Errorf("Map failed: %v", err)
	}
}
