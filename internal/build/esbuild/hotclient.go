package esbuild

import (
	"strconv"
	"strings"
)

// hotClientTemplate reconnects after the channel drops and reloads the page
// once a build with a different hash than the first one seen arrives.
const hotClientTemplate = `;(function () {
  if (typeof window === "undefined" || typeof WebSocket === "undefined") return;
  if (window.__lynxserveHot) return;
  window.__lynxserveHot = true;
  var url = __URL__, seen = null;
  function connect() {
    var ws = new WebSocket(url);
    ws.onmessage = function (e) {
      var msg;
      try { msg = JSON.parse(e.data); } catch (_) { return; }
      if (msg.type === "success" || msg.type === "warnings") {
        if (seen !== null && msg.hash !== seen) { window.location.reload(); return; }
        seen = msg.hash;
        if (msg.type === "warnings") console.warn("[lynxserve] Compiled with warnings", msg.warnings);
      } else if (msg.type === "errors") {
        console.error("[lynxserve] Failed to compile", msg.errors);
      }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();`

func hotClientBanner(url string) string {
	return strings.Replace(hotClientTemplate, "__URL__", strconv.Quote(url), 1)
}
