package editor

import (
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"os"
	"sort"
	"strings"
)

//go:embed ui
var uiFiles embed.FS

// UIHandler：前端静态页面；dir 为空时使用内置页面，否则从该目录读取（便于替换为构建产物）
func UIHandler(dir string) http.Handler {
	if dir != "" {
		return http.FileServerFS(os.DirFS(dir))
	}
	sub, err := fs.Sub(uiFiles, "ui")
	if err != nil {
		panic(err)
	}
	return http.FileServerFS(sub)
}

// ConfigJS：把运行参数以 window.KEY=值 的形式暴露给前端
// 约束：值一律经 JSON 编码，字符串中的引号与 </script> 不会破坏脚本。
func ConfigJS(values map[string]any) http.Handler {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		b, err := json.Marshal(values[k])
		if err != nil {
			b = []byte("null")
		}
		sb.WriteString("window.")
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.Write(b)
		sb.WriteString(";\n")
	}
	body := []byte(sb.String())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write(body)
	})
}
