package options

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Settings is the typed view of resolved Options.
type Settings struct {
	To               []string      `mapstructure:"to"`
	ErrorTo          []string      `mapstructure:"error_to"`
	NRetries         int           `mapstructure:"n_retries"`
	Enabled          bool          `mapstructure:"enabled"`
	UseSSH           bool          `mapstructure:"use_ssh"`
	Targets          []string      `mapstructure:"targets"`
	MirrorsDirectory string        `mapstructure:"mirrors_directory"`
	Git              string        `mapstructure:"git"`
	GitCommitMailer  string        `mapstructure:"git_commit_mailer"`
	CommitEmail      string        `mapstructure:"commit_email"`
	From             string        `mapstructure:"from"`
	FromDomain       string        `mapstructure:"from_domain"`
	Sender           string        `mapstructure:"sender"`
	SleepPerMail     string        `mapstructure:"sleep_per_mail"`
	SendPerTo        bool          `mapstructure:"send_per_to"`
	AddHTML          bool          `mapstructure:"add_html"`
	MaxDiffSize      string        `mapstructure:"max_diff_size"`
	When             string        `mapstructure:"when"`
	GitTimeout       time.Duration `mapstructure:"git_timeout"`
	NotifierTimeout  time.Duration `mapstructure:"notifier_timeout"`
	LockTimeout      time.Duration `mapstructure:"lock_timeout"`
}

// Decode converts opts into Settings. Scalars are coerced where it is
// unambiguous: a single recipient string becomes a one-element list and
// numeric strings become integers. Unknown keys are ignored.
func Decode(opts Options) (Settings, error) {
	var out Settings
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			numberToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(map[string]interface{}(opts)); err != nil {
		return out, fmt.Errorf("decode repository options: %w", err)
	}
	if out.CommitEmail != "" {
		out.GitCommitMailer = out.CommitEmail
	}
	if out.NRetries < 0 {
		out.NRetries = 0
	}
	return out, nil
}

// numberToDurationHook reads bare numbers as seconds.
func numberToDurationHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch value := data.(type) {
	case int:
		return time.Duration(value) * time.Second, nil
	case int64:
		return time.Duration(value) * time.Second, nil
	case float64:
		return time.Duration(value * float64(time.Second)), nil
	default:
		return data, nil
	}
}
