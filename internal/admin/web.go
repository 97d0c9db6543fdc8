// Package admin is the local control surface: web page, serial-style
// console, physical reset line. Everything here only mutates the config
// store or asks for a restart, telemetry core stays untouched.
package admin

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/windevs/sensornode/internal/confstore"
	"github.com/windevs/sensornode/internal/devclock"
	"github.com/windevs/sensornode/internal/sensor"
	"github.com/windevs/sensornode/log2"
)

type Web struct {
	Log      *log2.Log
	Store    *confstore.Store
	Sensor   sensor.Devicer
	Clock    *devclock.Clock
	Username string
	Password string
	Restart  func(reason string)
}

func (w *Web) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", w.auth(w.handleIndex)).Methods(http.MethodGet)
	r.HandleFunc("/config", w.auth(w.handleConfigForm)).Methods(http.MethodGet)
	r.HandleFunc("/config", w.auth(w.handleConfigSave)).Methods(http.MethodPost)
	return r
}

func (w *Web) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		user, pass, ok := req.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(w.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(w.Password)) != 1 {
			rw.Header().Set("WWW-Authenticate", `Basic realm="sensornode"`)
			http.Error(rw, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(rw, req)
	}
}

func (w *Web) handleIndex(rw http.ResponseWriter, req *http.Request) {
	humidity, tempC, err := w.Sensor.Read()
	if err == nil {
		err = sensor.Validate(humidity, tempC)
	}
	rw.Header().Set("Content-Type", "text/html")
	fmt.Fprint(rw, "<html><body><h1>Sensor Data</h1>")
	if err != nil {
		fmt.Fprintf(rw, "<p>Sensor read failed: %v</p>", err)
	} else {
		fmt.Fprintf(rw, "<p>Humidity: %.2f%%</p>", humidity)
		fmt.Fprintf(rw, "<p>Temperature (C): %.2f&deg;C</p>", tempC)
		fmt.Fprintf(rw, "<p>Temperature (F): %.2f&deg;F</p>", sensor.CToF(tempC))
		fmt.Fprintf(rw, "<p>Heat Index (C): %.2f&deg;C</p>", sensor.HeatIndexC(tempC, humidity))
		fmt.Fprintf(rw, "<p>Heat Index (F): %.2f&deg;F</p>", sensor.HeatIndexF(sensor.CToF(tempC), humidity))
	}
	fmt.Fprintf(rw, "<p>Uptime: %s</p>", devclock.FormatUptime(w.Clock.UptimeSeconds()))
	fmt.Fprint(rw, "</body></html>")
}

func (w *Web) handleConfigForm(rw http.ResponseWriter, req *http.Request) {
	rw.Header().Set("Content-Type", "text/html")
	fmt.Fprint(rw, `<html><body><h1>Configure WiFi</h1>
<form action='/config' method='post'>
SSID: <input type='text' name='ssid'><br>
Password: <input type='password' name='password'><br>
<input type='submit' value='Save'>
</form></body></html>`)
}

func (w *Web) handleConfigSave(rw http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	ssid := req.PostFormValue("ssid")
	password := req.PostFormValue("password")
	if ssid == "" || password == "" {
		rw.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(rw, "<html><body><h1>Missing SSID or Password!</h1></body></html>")
		return
	}

	// both fields must commit durably before the restart acts on them
	if err := w.Store.Put(confstore.FieldSSID, ssid); err != nil {
		w.Log.Errorf("config save ssid err=%v", err)
		http.Error(rw, "storage commit failed", http.StatusInternalServerError)
		return
	}
	if err := w.Store.Put(confstore.FieldPassword, password); err != nil {
		w.Log.Errorf("config save password err=%v", err)
		http.Error(rw, "storage commit failed", http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", "text/html")
	fmt.Fprint(rw, "<html><body><h1>Configuration Saved!</h1></body></html>")
	w.Restart("web config saved")
}
