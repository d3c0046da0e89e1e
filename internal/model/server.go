package model

import (
	"context"
	"fmt"
	"os"

	"github.com/Brownie44l1/potato-api/internal/config"
	"github.com/Brownie44l1/potato-api/internal/preprocess"
	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// Server runs the classifier in-process with ONNX Runtime. Every call to
// Predict owns its tensors, so one Server may be shared across requests.
type Server struct {
	session  *ort.DynamicAdvancedSession
	Metadata Metadata
	width    int64
	logger   logrus.FieldLogger
}

func NewServer(cfg config.ModelConfig, classes int, logger logrus.FieldLogger) (*Server, error) {
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	s, err := newServer(cfg, classes, logger)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, err
	}
	return s, nil
}

func newServer(cfg config.ModelConfig, classes int, logger logrus.FieldLogger) (*Server, error) {
	metadata, err := loadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, err
	}

	if err := metadata.discover(cfg.Path); err != nil {
		return nil, err
	}

	width, err := metadata.validate(classes)
	if err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.Path,
		[]string{metadata.InputName}, []string{metadata.OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"input":        metadata.InputName,
		"input_shape":  metadata.InputShape,
		"output":       metadata.OutputName,
		"output_shape": metadata.OutputShape,
	}).Debug("onnx session ready")

	return &Server{
		session:  session,
		Metadata: metadata,
		width:    width,
		logger:   logger,
	}, nil
}

func loadMetadata(path string) (Metadata, error) {
	var metadata Metadata
	if path == "" {
		return metadata, nil
	}

	metaFile, err := os.ReadFile(path)
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata: %w", err)
	}

	if err := sonic.Unmarshal(metaFile, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return metadata, nil
}

// discover fills whatever the metadata file left out from the graph itself.
func (m *Metadata) discover(modelPath string) error {
	if m.InputName != "" && m.OutputName != "" && len(m.InputShape) > 0 && len(m.OutputShape) > 0 {
		return nil
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return fmt.Errorf("failed to inspect model %s: %w", modelPath, err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return fmt.Errorf("model must have exactly one input and one output, has %d and %d",
			len(inputs), len(outputs))
	}

	if m.InputName == "" {
		m.InputName = inputs[0].Name
	}
	if m.OutputName == "" {
		m.OutputName = outputs[0].Name
	}
	if len(m.InputShape) == 0 {
		m.InputShape = []int64(inputs[0].Dimensions)
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64(outputs[0].Dimensions)
	}
	return nil
}

// validate checks the graph accepts a batch of decoded images and returns the
// width of one output row. Non-positive dimensions are dynamic and accepted.
func (m Metadata) validate(classes int) (int64, error) {
	want := []int64{1, preprocess.Height, preprocess.Width, preprocess.Channels}
	if len(m.InputShape) != len(want) {
		return 0, fmt.Errorf("model input %v must have rank %d", m.InputShape, len(want))
	}
	for i, dim := range m.InputShape {
		if dim > 0 && dim != want[i] {
			return 0, fmt.Errorf("model input %v is incompatible with %v", m.InputShape, want)
		}
	}

	if len(m.OutputShape) != 2 {
		return 0, fmt.Errorf("model output %v must have rank 2", m.OutputShape)
	}
	width := m.OutputShape[1]
	if width <= 0 {
		width = int64(classes)
	}
	if width != int64(classes) {
		return 0, fmt.Errorf("model outputs %d scores but %d classes are configured", width, classes)
	}
	return width, nil
}

func (s *Server) Predict(_ context.Context, batch *preprocess.Batch) ([][]float32, error) {
	input, err := ort.NewTensor(ort.NewShape(batch.Shape...), batch.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	rows := int64(batch.Len())
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(rows, s.width))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	if err := s.session.Run([]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	outputData := output.GetData()
	predictions := make([][]float32, rows)
	for i := range predictions {
		row := make([]float32, s.width)
		copy(row, outputData[int64(i)*s.width:])
		predictions[i] = row
	}
	return predictions, nil
}

func (s *Server) Close() error {
	var err error
	if s.session != nil {
		err = s.session.Destroy()
	}
	if destroyErr := ort.DestroyEnvironment(); err == nil {
		err = destroyErr
	}
	return err
}
