package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"trade_agent/internal/models"
)

// OnnxModel — скоринг через onnxruntime-сессию. Вход [1,dim] фич одного
// инструмента, выход [1,3] — вероятности down/flat/up.
type OnnxModel struct {
	mu      sync.Mutex // сессия не потокобезопасна
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	dim     int
	version string
}

func InitializeORT() error {
	libPath := "/usr/lib/libonnxruntime.so"
	if runtime.GOOS == "windows" {
		libPath = "onnxruntime.dll"
	} else if runtime.GOOS == "darwin" {
		libPath = "libonnxruntime.dylib"
	}
	ort.SetSharedLibraryPath(libPath)
	return ort.InitializeEnvironment()
}

func NewOnnxModel(modelPath string, dim int, version string) (*OnnxModel, error) {
	_ = InitializeORT()

	inputShape := ort.NewShape(1, int64(dim))
	inputData := make([]float32, dim)
	inputTensor, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %v", err)
	}

	outputShape := ort.NewShape(1, 3)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %v", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create session: %v", err)
	}

	return &OnnxModel{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		dim:     dim,
		version: version,
	}, nil
}

func (m *OnnxModel) Version() string { return m.version }

func (m *OnnxModel) Score(ctx context.Context, obs models.Observation) ([]models.Candidate, error) {
	var out []models.Candidate
	for assetID, frame := range obs.Frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(frame.Features) != m.dim {
			continue
		}

		down, flat, up, err := m.infer(frame.Features)
		if err != nil {
			return nil, err
		}

		// flat — модельный hold, кандидата не порождает
		if flat >= down && flat >= up {
			continue
		}
		c := models.Candidate{AssetID: assetID}
		if up >= down {
			c.Action = models.ActionBuy
			c.Confidence = float64(up)
		} else {
			c.Action = models.ActionSell
			c.Confidence = float64(down)
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *OnnxModel) infer(features []float64) (down, flat, up float32, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in := m.input.GetData()
	for i, f := range features {
		in[i] = float32(f)
	}
	if err = m.session.Run(); err != nil {
		return 0, 0, 0, fmt.Errorf("onnx run: %v", err)
	}
	res := m.output.GetData()
	return res[0], res[1], res[2], nil
}

func (m *OnnxModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.input.Destroy()
		m.output.Destroy()
		m.session = nil
	}
}
