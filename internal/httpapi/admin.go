package httpapi

import "net/http"

// handleAdmin serves the single-page control panel. The page stores the API
// token from the first ?token= visit in localStorage and talks to the JSON
// endpoints from there.
func (s *Server) handleAdmin(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(adminPage))
}

const adminPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width, initial-scale=1" />
<title>wareact control panel</title>
<style>
  :root { color-scheme: dark; }
  * { box-sizing: border-box; }
  body { margin: 0; font: 16px system-ui, sans-serif; background: #0a0a12; color: #eaeaea; }
  .wrap { max-width: 760px; margin: 0 auto; padding: 24px 16px; }
  h1 { font-size: 24px; margin: 0 0 4px; }
  .subtitle { color: #9ca3af; font-size: 14px; margin-bottom: 24px; }
  .card { background: #111827; border: 1px solid #374151; border-radius: 12px; padding: 20px; margin: 14px 0; }
  .card-title { font-weight: 700; margin-bottom: 12px; }
  .badge { display: inline-block; padding: 8px 16px; border-radius: 8px; font-weight: 600; }
  .badge.on { background: #059669; }
  .badge.off { background: #dc2626; }
  button, .btn { cursor: pointer; border: 0; border-radius: 8px; padding: 10px 18px; font-weight: 600;
    color: #fff; text-decoration: none; display: inline-block; margin: 8px 8px 0 0; }
  .ok { background: #059669; } .danger { background: #dc2626; } .info { background: #2563eb; }
  .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 10px; margin-top: 12px; }
  .item { background: #1e293b; padding: 10px; border-radius: 8px; }
  .label { font-size: 12px; color: #9ca3af; }
  .value { font-size: 16px; font-weight: 700; color: #60a5fa; }
  .sender { background: #1e293b; padding: 10px; border-radius: 8px; margin-bottom: 6px; font-size: 14px; }
  .sender .jid { color: #34d399; font-weight: 600; }
  .sender .text { color: #d1d5db; margin-top: 2px; }
  .sender .meta { color: #6b7280; font-size: 12px; margin-top: 2px; }
</style>
</head>
<body>
<div class="wrap">
  <h1>wareact</h1>
  <div class="subtitle">group reaction agent</div>

  <div class="card">
    <div class="card-title">Listener</div>
    <div id="badge" class="badge off"><span id="statusText">loading…</span></div>
    <div>
      <button id="btnOn" class="ok">Enable</button>
      <button id="btnOff" class="danger">Disable</button>
      <button id="btnRefresh" class="info">Refresh groups</button>
      <a href="/qr" id="lnkQr" class="btn info" target="_blank" rel="noopener">QR</a>
    </div>
  </div>

  <div class="card">
    <div class="card-title">Status</div>
    <div class="grid" id="grid"></div>
  </div>

  <div class="card">
    <div class="card-title">Recent senders</div>
    <div id="senders">loading…</div>
  </div>
</div>

<script>
(function(){
  const qs = new URLSearchParams(location.search)
  const qTok = qs.get('token')
  if (qTok) {
    localStorage.setItem('apiToken', qTok)
    history.replaceState(null, '', location.pathname)
  }
  const TOKEN = localStorage.getItem('apiToken') || ''
  const $ = (s) => document.querySelector(s)

  async function api(path, opts={}){
    const headers = { 'Content-Type': 'application/json',
      ...(TOKEN ? { 'Authorization': 'Bearer ' + TOKEN } : {}) }
    const r = await fetch(path, { ...opts, headers })
    if (!r.ok) throw new Error('HTTP ' + r.status)
    return r.json()
  }

  function setBadge(listening){
    $('#badge').className = 'badge ' + (listening ? 'on' : 'off')
    $('#statusText').textContent = listening ? 'listening' : 'paused'
  }

  function renderStatus(st){
    const items = [
      { label: 'connection', value: st.connection },
      { label: 'tracked groups', value: st.groups_tracked },
      { label: 'sender policy', value: st.sender_policy },
      { label: 'min chars', value: st.min_message_chars },
      { label: 'ledger size', value: st.ledger_size },
      { label: 'emoji', value: st.emoji }
    ]
    $('#grid').innerHTML = items.map(i =>
      '<div class="item"><div class="label">' + i.label + '</div><div class="value">' + i.value + '</div></div>'
    ).join('')
  }

  function renderSenders(items){
    if (!items || !items.length) {
      $('#senders').innerHTML = '<div class="meta">no recent senders</div>'
      return
    }
    $('#senders').innerHTML = items.slice(0, 10).map(s =>
      '<div class="sender"><div class="jid">' + s.jid + '</div>' +
      '<div class="text">' + (s.text || '(no text)') + '</div>' +
      '<div class="meta">' + (s.group || '') + ' · ' + new Date(s.ts).toLocaleTimeString() + '</div></div>'
    ).join('')
  }

  async function load(){
    try {
      const r = await api('/status')
      setBadge(r.status.listening)
      renderStatus(r.status)
      const rr = await api('/recent-senders')
      renderSenders(rr.items)
      const u = new URL('/qr', location.origin)
      if (TOKEN) u.searchParams.set('token', TOKEN)
      $('#lnkQr').href = u.toString()
    } catch (e) {
      $('#statusText').textContent = 'error: ' + e.message
    }
  }

  async function setEnabled(v){
    try {
      await api('/listener', { method: 'POST', body: JSON.stringify({ enabled: !!v }) })
      await load()
    } catch (e) { alert('error: ' + e.message) }
  }

  $('#btnOn').addEventListener('click', () => setEnabled(true))
  $('#btnOff').addEventListener('click', () => setEnabled(false))
  $('#btnRefresh').addEventListener('click', async () => {
    try { await api('/groups/refresh', { method: 'POST' }); await load() }
    catch (e) { alert('error: ' + e.message) }
  })

  load()
  setInterval(load, 5000)
})();
</script>
</body>
</html>`
