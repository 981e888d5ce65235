package api

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/NinoCoelho/WhatsAppBridge/internal/lifecycle"
	"github.com/NinoCoelho/WhatsAppBridge/internal/messaging"
	"github.com/NinoCoelho/WhatsAppBridge/internal/qr"
)

var initPage = template.Must(template.New("init").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>WhatsApp QR Code</title>
    <style>
        body { font-family: Arial, sans-serif; display: flex; flex-direction: column; align-items: center;
               justify-content: center; min-height: 100vh; margin: 0; background-color: #f0f2f5; }
        .container { background: white; padding: 2rem; border-radius: 8px;
                     box-shadow: 0 2px 4px rgba(0,0,0,0.1); text-align: center; }
        h1 { color: #128C7E; margin-bottom: 1rem; }
        #qrcode { margin: 2rem 0; }
        #qrcode img { width: {{.Size}}px; height: {{.Size}}px; }
        #status { margin-top: 1rem; font-weight: bold; color: #666; }
        .error { color: #dc3545; }
    </style>
</head>
<body>
    <div class="container">
        <h1>WhatsApp QR Code</h1>
        <p>Scan this QR code with WhatsApp to connect</p>
        <div id="qrcode">
            <img src="{{.QR}}" alt="WhatsApp QR Code">
        </div>
        <div id="status">Waiting for scan...</div>
    </div>
    <script>
        const key = {{.Key}};
        const maxRetries = {{.Polls}};
        let retries = 0;

        function setError(text) {
            const span = document.createElement('span');
            span.className = 'error';
            span.textContent = text;
            const status = document.getElementById('status');
            status.textContent = '';
            status.appendChild(span);
        }

        function checkStatus() {
            if (retries >= maxRetries) {
                setError('Timeout: Please refresh the page to try again');
                return;
            }
            fetch('/auth/status', { headers: { 'Authorization': 'Bearer ' + key } })
                .then(response => response.json())
                .then(data => {
                    if (data.authenticated) {
                        document.getElementById('status').textContent = 'Connected! You can close this window.';
                        document.getElementById('qrcode').style.display = 'none';
                    } else {
                        retries++;
                        setTimeout(checkStatus, 1000);
                    }
                })
                .catch(error => setError('Error: ' + error.message));
        }
        checkStatus();
    </script>
</body>
</html>
`))

type initPageData struct {
	QR    template.URL
	Key   string
	Size  int
	Polls int
}

const initPagePolls = 30

// InitHandler serves the browser pairing page, guarded by the key in its path.
type InitHandler struct {
	conn   Connection
	client messaging.Client
	key    string
	qrSize int
	log    zerolog.Logger
}

func NewInitHandler(conn Connection, client messaging.Client, key string, qrSize int, log zerolog.Logger) *InitHandler {
	return &InitHandler{conn: conn, client: client, key: key, qrSize: qrSize, log: log}
}

func (h *InitHandler) Page(w http.ResponseWriter, r *http.Request) {
	if !keyEqual(chi.URLParam(r, "key"), h.key) {
		writeError(w, http.StatusUnauthorized, "Invalid authentication key")
		return
	}

	if h.conn.Status().Authenticated && h.client.Live() {
		h.log.Info().Msg("client is already authenticated and ready")
		writeJSON(w, http.StatusOK, map[string]string{"status": "authenticated"})
		return
	}

	code, err := h.conn.Initialize(r.Context())
	if errors.Is(err, lifecycle.ErrInitInProgress) {
		// Another attempt is running; show its code if it already has one.
		if code = h.conn.CurrentQR(); code == "" {
			writeError(w, http.StatusConflict, "Initialization already in progress")
			return
		}
		err = nil
	}
	if err != nil {
		h.log.Error().Err(err).Msg("initialization error")
		writeError(w, http.StatusInternalServerError, "Failed to initialize WhatsApp client: "+err.Error())
		return
	}

	if code == "" {
		if h.conn.Status().Authenticated {
			writeJSON(w, http.StatusOK, map[string]string{"status": "authenticated"})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	url, err := qr.DataURL(code, h.qrSize)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to render QR code")
		writeError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := initPage.Execute(w, initPageData{
		QR:    template.URL(url),
		Key:   h.key,
		Size:  h.qrSize,
		Polls: initPagePolls,
	}); err != nil {
		h.log.Error().Err(err).Msg("failed to render init page")
	}
}
