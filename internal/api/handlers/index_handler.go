package handlers

import "net/http"

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Nefrit VPN</title></head>
<body><h1>Nefrit VPN Active</h1></body>
</html>
`

type IndexHandler struct{}

func NewIndexHandler() *IndexHandler {
	return &IndexHandler{}
}

func (h *IndexHandler) Handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}
