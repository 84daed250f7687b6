// Package serra polls a greenhouse controller for sensor snapshots and
// renders each reading onto one or more displays.
//
// The controller serves a JSON object at /get_data with up to seven readings:
//
//	{"temp": 22.5, "umid_aria": 61, "umid_terr1": 40, "umid_terr2": 38,
//	 "umid_terr3": 45, "liv_acqua": "OK", "liv_lum": 320}
//
// Every field is optional. A [Poller] fetches the snapshot once immediately
// and then once per interval, and writes each reading into its display
// target. Missing readings show [Fallback] ("N/A"). Soil humidity readings
// get a "%" suffix.
//
// # Quick Start
//
// Serve the greenhouse page and keep it current:
//
//	d, _ := serra.NewDashboard(serra.WithPort(8080))
//	p, _ := serra.New(
//	    serra.WithBaseURL("http://greenhouse.local:5000"),
//	    serra.WithSurface(d.Surface()),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	d.Start(ctx, p) // blocks until ctx is cancelled
//
// # Missing values
//
// By default ([ModeTruthy]) a reading that is absent, null, false, 0 or ""
// shows the fallback, so a genuine 0 reads "N/A". [ModePresence] only treats
// absent and null as missing.
//
// # Failed cycles
//
// A cycle whose request or decode fails writes nothing: every target keeps
// its previous text. The failure is logged as "Error fetching data:" and the
// next cycle runs on schedule. Failures are never retried.
//
// # Overlapping cycles
//
// By default a tick that fires while the previous request is still pending
// is skipped. With [WithOverlap] each tick starts a new request and
// responses are rendered as they arrive, so a slow older snapshot may
// overwrite a newer one.
//
// # Surfaces
//
// Anything implementing [Surface] can be a display. The repository ships
// the web dashboard ([Dashboard.Surface]), a terminal display and an MQTT
// publisher; [MultiSurface] drives several at once.
package serra
