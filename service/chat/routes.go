package chat

import (
	"net/http"

	"janusbridge/service/janus"

	"github.com/gin-gonic/gin"
)

// Routes mounts the relay on r. metrics may be nil.
func (s *Server) Routes(r gin.IRouter, metrics http.Handler) {
	r.GET("/", s.index)
	r.GET("/chat", s.HandleWS)
	r.GET("/healthz", s.health)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
}

type healthResponse struct {
	Status  string       `json:"status"`
	Gateway janus.Status `json:"gateway"`
	Users   int          `json:"users"`
}

func (s *Server) health(c *gin.Context) {
	st := s.gw.Status()
	resp := healthResponse{Status: "ok", Gateway: st, Users: s.reg.Len()}
	code := http.StatusOK
	if st.State != janus.StateConnected {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
    <head>
        <title>Janus Chat</title>
    </head>
    <body>
        <h1>Janus chat</h1>
        <div id="chat">
            <p><em>Connecting...</em></p>
        </div>
        <input type="text" id="text" />
        <button type="button" id="send">Send</button>
        <script type="text/javascript">
        const chat = document.getElementById('chat');
        const text = document.getElementById('text');
        const ws = new WebSocket('ws://' + location.host + '/chat');

        function message(data) {
            const line = document.createElement('p');
            line.innerText = data;
            chat.appendChild(line);
        }

        ws.onopen = function() {
            chat.innerHTML = '<p><em>Connected!</em></p>';
        };
        ws.onmessage = function(msg) {
            message(msg.data);
        };
        ws.onclose = function() {
            chat.getElementsByTagName('em')[0].innerText = 'Disconnected!';
        };
        send.onclick = function() {
            const msg = text.value;
            ws.send(msg);
            text.value = '';
            message('<You>: ' + msg);
        };
        </script>
    </body>
</html>
`
