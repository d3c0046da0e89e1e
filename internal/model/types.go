package model

// Metadata describes the ONNX graph's single input and output.
type Metadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
}

type PredictionResponse struct {
	Class      string  `json:"class" example:"Late Blight"`
	Confidence float32 `json:"confidence" example:"0.9731"`
}

// tfModelStatus is the body of TensorFlow Serving's model status endpoint.
type tfModelStatus struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
		Status  struct {
			ErrorCode    string `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		} `json:"status"`
	} `json:"model_version_status"`
}

type tfPredictRequest struct {
	Instances [][][][]float32 `json:"instances"`
}

type tfPredictResponse struct {
	Predictions [][]float32 `json:"predictions"`
}

type tfErrorResponse struct {
	Error string `json:"error"`
}
