package domain

import "strings"

// BackendKind: вид бэкенда эмбеддингов.
type BackendKind string

const (
	BackendClassifier BackendKind = "classifier" // ONNX-классификатор, логиты как эмбеддинг
	BackendCLIP       BackendKind = "clip"       // совместный текст/изображение энкодер
	BackendRemote     BackendKind = "remote"     // внешний gRPC-энкодер с общим пространством
)

// Пороги косинусного сходства подобраны эмпирически.
const (
	ClassifierThreshold = 0.60
	JointThreshold      = 0.25
)

// ModelExt: расширение файлов моделей.
const ModelExt = ".onnx"

// Joint сообщает, работает ли бэкенд в общем пространстве текста и изображений.
func (k BackendKind) Joint() bool {
	return k == BackendCLIP || k == BackendRemote
}

// Threshold возвращает порог сходства по умолчанию для вида бэкенда.
func (k BackendKind) Threshold() float64 {
	if k.Joint() {
		return JointThreshold
	}
	return ClassifierThreshold
}

// BackendInfo описывает загруженный бэкенд.
type BackendInfo struct {
	Kind      BackendKind
	Artifact  string // имя файла модели или модели удалённого энкодера
	Dimension int    // 0, если размерность станет известна только после инференса
	Text      bool   // поддерживает ли кодирование текста
}

// Key однозначно определяет пространство эмбеддингов бэкенда.
func (b BackendInfo) Key() string {
	return string(b.Kind) + "/" + b.Artifact
}

// ModelArtifact: установленный файл модели.
type ModelArtifact struct {
	Filename string
	SizeMB   float64
	Active   bool
}

// CatalogEntry: модель из курируемого каталога.
type CatalogEntry struct {
	Name        string
	Filename    string
	URL         string
	SizeMB      float64
	Description string
	Opset       int
	Installed   bool
	Active      bool
}

// ValidModelFilename проверяет, что имя является простым именем файла с расширением .onnx.
func ValidModelFilename(name string) bool {
	if name == "" || name == ModelExt || !strings.HasSuffix(name, ModelExt) {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return true
}
