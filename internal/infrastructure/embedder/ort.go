package embedder

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/psms-tech/go-backend/pkg/e"
	ort "github.com/yalue/onnxruntime_go"
)

var ortEnv sync.Mutex

// initORT инициализирует окружение ONNX Runtime один раз на процесс.
func initORT(libPath string) error {
	ortEnv.Lock()
	defer ortEnv.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	if libPath == "" {
		libPath = resolveORTLib()
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return e.Wrap("initialize onnxruntime", err)
	}
	return nil
}

// DestroyORT освобождает окружение ONNX Runtime.
func DestroyORT() error {
	ortEnv.Lock()
	defer ortEnv.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// resolveORTLib ищет библиотеку в lib/ рядом с бинарником, затем в lib/ рабочего каталога.
// Пустая строка оставляет путь по умолчанию onnxruntime_go.
func resolveORTLib() string {
	name := "libonnxruntime.so"
	if runtime.GOOS == "darwin" {
		name = "libonnxruntime.dylib"
	}

	var candidates []string
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "lib", name))
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, "lib", name))
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}
