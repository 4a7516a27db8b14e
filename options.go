// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package tsurugi

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/tsurugidb/tsurugi-go/credential"
	"github.com/tsurugidb/tsurugi-go/tgerr"
)

// ConnectionOptions configures a session at construct time. The zero
// value is not usable directly; use NewConnectionOptions or
// LoadOptionsFile, then refine with the With* functions.
type ConnectionOptions struct {
	Endpoint   string
	Credential credential.Credential

	ValidityPeriod    time.Duration
	ApplicationName   string
	SessionLabel      string
	KeepAliveInterval time.Duration

	DefaultTimeout time.Duration
	SendTimeout    time.Duration
	RecvTimeout    time.Duration

	// LargeObjectSendPath and LargeObjectReceivePath name local
	// directories for large objects. A non-empty
	// LargeObjectReceivePath roots the LOB spool that
	// Session.ReadLOBToFile writes to. LargeObjectSendPath is stored
	// but not read by Connect or Session.
	LargeObjectSendPath    string
	LargeObjectReceivePath string
}

const (
	// DefaultValidityPeriod is the session validity period the
	// server assumes absent an explicit WithValidityPeriod.
	DefaultValidityPeriod = 300 * time.Second
	// DefaultKeepAliveInterval is how often the keep-alive task
	// calls UpdateExpirationTime; 0 disables the task entirely.
	DefaultKeepAliveInterval = 60 * time.Second
)

// NewConnectionOptions returns options for endpoint with every other
// field at its documented default.
func NewConnectionOptions(endpoint string) ConnectionOptions {
	return ConnectionOptions{
		Endpoint:          endpoint,
		Credential:        credential.None(),
		ValidityPeriod:    DefaultValidityPeriod,
		KeepAliveInterval: DefaultKeepAliveInterval,
	}
}

// Option mutates a ConnectionOptions in place; see the With*
// functions below.
type Option func(*ConnectionOptions)

// Apply applies every opt to o in order.
func (o *ConnectionOptions) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithCredential sets the credential carried on the options. Connect's
// handshake sends only the application name and session label; the
// credential is not sent to the server.
func WithCredential(c credential.Credential) Option {
	return func(o *ConnectionOptions) { o.Credential = c }
}

// WithValidityPeriod overrides the session validity period requested
// at handshake time.
func WithValidityPeriod(d time.Duration) Option {
	return func(o *ConnectionOptions) { o.ValidityPeriod = d }
}

// WithApplicationName sets the client-identifying string sent during
// the handshake.
func WithApplicationName(name string) Option {
	return func(o *ConnectionOptions) { o.ApplicationName = name }
}

// WithSessionLabel sets the human-readable session label sent during
// the handshake.
func WithSessionLabel(label string) Option {
	return func(o *ConnectionOptions) { o.SessionLabel = label }
}

// WithKeepAliveInterval overrides how often Session's keep-alive task
// calls UpdateExpirationTime. Zero disables the task.
func WithKeepAliveInterval(d time.Duration) Option {
	return func(o *ConnectionOptions) { o.KeepAliveInterval = d }
}

// WithDefaultTimeout sets the default per-operation timeout every
// service client's blocking-default form uses.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *ConnectionOptions) { o.DefaultTimeout = d }
}

// WithSendTimeout bounds each individual Link.Send call.
func WithSendTimeout(d time.Duration) Option {
	return func(o *ConnectionOptions) { o.SendTimeout = d }
}

// WithRecvTimeout bounds how long Session.Connect waits for the
// handshake response; it does not affect steady-state receives, which
// are driven by the caller's context.
func WithRecvTimeout(d time.Duration) Option {
	return func(o *ConnectionOptions) { o.RecvTimeout = d }
}

// WithLargeObjectSendPath sets LargeObjectSendPath. Connect and
// Session do not read it: BLOB/CLOB parameters are not spooled from
// it.
func WithLargeObjectSendPath(dir string) Option {
	return func(o *ConnectionOptions) { o.LargeObjectSendPath = dir }
}

// WithLargeObjectReceivePath sets the local directory BLOB/CLOB
// values read from result sets are spooled into.
func WithLargeObjectReceivePath(dir string) Option {
	return func(o *ConnectionOptions) { o.LargeObjectReceivePath = dir }
}

// optionsFile is the on-disk YAML shape LoadOptionsFile reads. Only
// the fields meaningful to unattended configuration are exposed; the
// credential block mirrors credential.Credential's discriminated
// union, tagged by "kind".
type optionsFile struct {
	Endpoint          string `yaml:"endpoint"`
	ApplicationName   string `yaml:"application_name"`
	SessionLabel      string `yaml:"session_label"`
	ValidityPeriod    string `yaml:"validity_period"`
	KeepAliveInterval string `yaml:"keep_alive_interval"`
	DefaultTimeout    string `yaml:"default_timeout"`
	SendTimeout       string `yaml:"send_timeout"`
	RecvTimeout       string `yaml:"recv_timeout"`

	LargeObjectSendPath    string `yaml:"large_object_send_path"`
	LargeObjectReceivePath string `yaml:"large_object_receive_path"`

	Credential struct {
		Kind     string `yaml:"kind"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Token    string `yaml:"token"`
		FilePath string `yaml:"file_path"`
	} `yaml:"credential"`
}

func parseDuration(field, s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, tgerr.Client("options file: invalid %s %q: %v", field, s, err)
	}
	return d, nil
}

func (f optionsFile) credential() (credential.Credential, error) {
	switch f.Credential.Kind {
	case "", "none":
		return credential.None(), nil
	case "user-password":
		return credential.UserPassword(f.Credential.User, f.Credential.Password), nil
	case "auth-token":
		return credential.AuthToken(f.Credential.Token), nil
	case "file":
		return credential.File(f.Credential.FilePath), nil
	default:
		return credential.Credential{}, tgerr.Client("options file: unknown credential kind %q", f.Credential.Kind)
	}
}

// LoadOptionsFile reads a YAML connection options file from path,
// following the layout the Tsurugi tooling's tgctl/tsubakuro
// configuration files use, and returns a ready ConnectionOptions.
func LoadOptionsFile(path string) (ConnectionOptions, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ConnectionOptions{}, tgerr.IO(err, "reading options file %s", path)
	}
	var f optionsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return ConnectionOptions{}, tgerr.ClientWrap(err, "parsing options file %s", path)
	}
	if f.Endpoint == "" {
		return ConnectionOptions{}, tgerr.Client("options file %s: endpoint is required", path)
	}

	o := NewConnectionOptions(f.Endpoint)
	o.ApplicationName = f.ApplicationName
	o.SessionLabel = f.SessionLabel

	if o.ValidityPeriod, err = parseDuration("validity_period", f.ValidityPeriod, DefaultValidityPeriod); err != nil {
		return ConnectionOptions{}, err
	}
	if o.KeepAliveInterval, err = parseDuration("keep_alive_interval", f.KeepAliveInterval, DefaultKeepAliveInterval); err != nil {
		return ConnectionOptions{}, err
	}
	if o.DefaultTimeout, err = parseDuration("default_timeout", f.DefaultTimeout, 0); err != nil {
		return ConnectionOptions{}, err
	}
	if o.SendTimeout, err = parseDuration("send_timeout", f.SendTimeout, 0); err != nil {
		return ConnectionOptions{}, err
	}
	if o.RecvTimeout, err = parseDuration("recv_timeout", f.RecvTimeout, 0); err != nil {
		return ConnectionOptions{}, err
	}
	o.LargeObjectSendPath = f.LargeObjectSendPath
	o.LargeObjectReceivePath = f.LargeObjectReceivePath

	if o.Credential, err = f.credential(); err != nil {
		return ConnectionOptions{}, err
	}
	return o, nil
}
