// Пакет static — встроенный браузерный клиент Converter.
// index.html и app.js встраиваются в бинарник через //go:embed
// и раздаются по путям / и /app.js.
package static

import (
	"embed"
	"net/http"
)

// content — встроенная файловая система клиента.
//
//go:embed index.html app.js
var content embed.FS

// FileSystem возвращает http.FileSystem с файлами клиента.
func FileSystem() http.FileSystem {
	return http.FS(content)
}

// Handler раздаёт клиент: "/" → index.html, "/app.js" → app.js.
func Handler() http.Handler {
	return http.FileServer(FileSystem())
}
