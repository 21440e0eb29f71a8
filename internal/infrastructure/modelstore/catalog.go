package modelstore

import "github.com/psms-tech/go-backend/internal/domain"

const catalogBaseURL = "https://github.com/onnx/models/raw/refs/heads/main/validated/vision/classification/"

// DefaultModel: модель, которая скачивается автоматически, если её нет в каталоге моделей.
const DefaultModel = "mobilenetv2-12.onnx"

// DefaultModelURL: адрес загрузки модели по умолчанию.
const DefaultModelURL = catalogBaseURL + "mobilenet/model/" + DefaultModel

// catalog: курируемый список проверенных классификаторов ONNX Model Zoo.
var catalog = []domain.CatalogEntry{
	{
		Name:        "MobileNet V2 (Default)",
		Filename:    "mobilenetv2-12.onnx",
		URL:         catalogBaseURL + "mobilenet/model/mobilenetv2-12.onnx",
		SizeMB:      14,
		Description: "Lightweight general-purpose classifier. 1000-d output. Good balance of speed and accuracy.",
		Opset:       12,
	},
	{
		Name:        "MobileNet V2 (Quantized INT8)",
		Filename:    "mobilenetv2-12-int8.onnx",
		URL:         catalogBaseURL + "mobilenet/model/mobilenetv2-12-int8.onnx",
		SizeMB:      4,
		Description: "Quantized version. 3.5x smaller, faster inference, slightly lower accuracy.",
		Opset:       12,
	},
	{
		Name:        "SqueezeNet 1.0",
		Filename:    "squeezenet1.0-12.onnx",
		URL:         catalogBaseURL + "squeezenet/model/squeezenet1.0-12.onnx",
		SizeMB:      5,
		Description: "Ultra-lightweight classifier. 1000-d output. Fastest option for constrained hardware.",
		Opset:       12,
	},
	{
		Name:        "ResNet-50 V2",
		Filename:    "resnet50-v2-7.onnx",
		URL:         catalogBaseURL + "resnet/model/resnet50-v2-7.onnx",
		SizeMB:      98,
		Description: "Deeper network with higher accuracy. 1000-d output. Recommended for best matching quality.",
		Opset:       7,
	},
	{
		Name:        "EfficientNet-Lite4",
		Filename:    "efficientnet-lite4-11.onnx",
		URL:         catalogBaseURL + "efficientnet-lite4/model/efficientnet-lite4-11.onnx",
		SizeMB:      49,
		Description: "Google's efficient architecture. 1000-d output. Great accuracy-to-size ratio.",
		Opset:       11,
	},
}
