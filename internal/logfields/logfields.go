package logfields

import "log/slog"

// Field keys every package logs with. One spelling per concept keeps the
// output greppable.
const (
	KeyPage       = "page"
	KeyRoute      = "route"
	KeyPath       = "path"
	KeyFile       = "file"
	KeySection    = "section"
	KeyTarget     = "target"
	KeyQuery      = "query"
	KeyMonth      = "month"
	KeyBuildID    = "build_id"
	KeyDeployID   = "deploy_id"
	KeyTopic      = "topic"
	KeyURL        = "url"
	KeyAddr       = "addr"
	KeySubject    = "subject"
	KeyStatus     = "status"
	KeyPosts      = "posts"
	KeyPages      = "pages"
	KeyAssets     = "assets"
	KeyTrigger    = "trigger"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// One helper per key so call sites stay short.
func Page(p string) slog.Attr         { return slog.String(KeyPage, p) }
func Route(r string) slog.Attr        { return slog.String(KeyRoute, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Section(s string) slog.Attr      { return slog.String(KeySection, s) }
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func Query(q string) slog.Attr        { return slog.String(KeyQuery, q) }
func Month(m string) slog.Attr        { return slog.String(KeyMonth, m) }
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func DeployID(id string) slog.Attr    { return slog.String(KeyDeployID, id) }
func Topic(t string) slog.Attr        { return slog.String(KeyTopic, t) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Addr(a string) slog.Attr         { return slog.String(KeyAddr, a) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Posts(n int) slog.Attr           { return slog.Int(KeyPosts, n) }
func Pages(n int) slog.Attr           { return slog.Int(KeyPages, n) }
func Assets(n int) slog.Attr          { return slog.Int(KeyAssets, n) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
