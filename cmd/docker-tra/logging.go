package main

import (
	"io"
	"log/syslog"

	mozlog "github.com/mozilla-services/go-mozlogrus"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	lSyslog "github.com/sirupsen/logrus/hooks/syslog"
	"gopkg.in/yaml.v3"

	"github.com/chandankrsah09/Docker-TRA/cfg"
)

const loggerName = "docker-tra"

// newLogger builds the process logger.  In production the mozlog format
// is always used.
func newLogger(conf cfg.LoggingConfig, env string) (*log.Logger, error) {
	logger := log.New()

	level, err := log.ParseLevel(conf.Level)
	if err != nil {
		return nil, errors.Wrap(err, "logging.level")
	}
	logger.SetLevel(level)

	format := conf.Format
	if env == "production" {
		format = cfg.FormatMozlog
	}
	switch format {
	case cfg.FormatMozlog:
		logger.Formatter = &mozlog.MozLogFormatter{
			LoggerName: loggerName,
		}
	case cfg.FormatJSON:
		logger.Formatter = &log.JSONFormatter{}
	default:
		logger.Formatter = &log.TextFormatter{FullTimestamp: true}
	}

	// add syslog hook if addr is provided
	if conf.SyslogAddr != "" {
		hook, err := lSyslog.NewSyslogHook("udp", conf.SyslogAddr, syslog.LOG_DEBUG, loggerName)
		if err != nil {
			return nil, errors.Wrap(err, "connecting to syslog")
		}
		logger.Hooks.Add(hook)
	}
	return logger, nil
}

func writeConfig(w io.Writer, conf *cfg.Config) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(conf); err != nil {
		return err
	}
	return enc.Close()
}
