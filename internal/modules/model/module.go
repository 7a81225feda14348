package model

import (
	"go.uber.org/fx"

	"trade_agent/internal/modules/config"
	"trade_agent/internal/modules/model/service"
)

// FeatureDim — размерность фич-вектора наблюдения, должна совпадать
// с тем, что шлёт/отдаёт источник наблюдений.
const FeatureDim = 6

func Module() fx.Option {
	return fx.Module("model",
		fx.Provide(
			func(cfg *config.Config) (*service.Registry, error) {
				var (
					h   service.Handle
					err error
				)
				switch cfg.Decision.Model {
				case "onnx":
					h, err = service.NewOnnxModel(cfg.Decision.OnnxModelPath, FeatureDim, "onnx-v1")
					if err != nil {
						return nil, err
					}
				default:
					h = service.NewLogitModel(FeatureDim, "logit-v1")
				}
				return service.NewRegistry(h), nil
			},
			func() service.Trainer { return service.NewLogitTrainer() },
		),
	)
}
