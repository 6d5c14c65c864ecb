package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Origem de validação: ecoa o que chegou depois do filtro (Cookie, IP, país),
// para conferir a remoção de cookies e o encaminhamento do gateway.
func main() {
	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		cookies := r.Header.Values("Cookie")
		fmt.Fprintf(w, "path: %s\n", r.URL.Path)
		fmt.Fprintf(w, "cookie: %q\n", strings.Join(cookies, "; "))
		fmt.Fprintf(w, "client-ip: %s\n", r.Header.Get("CF-Connecting-IP"))
		fmt.Fprintf(w, "country: %s\n", r.Header.Get("CF-IPCountry"))
		fmt.Printf("Log: %s %s cookie=%q\n", r.Method, r.URL.Path, cookies)
	})
	fmt.Printf("Origem de eco rodando em http://localhost%s\n", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
