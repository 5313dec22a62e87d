// entry point to app :)
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ds124wfegd/roombooker/config"
	"github.com/ds124wfegd/roombooker/internal/appServer"
	"github.com/ds124wfegd/roombooker/internal/transport/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	issueToken := flag.String("issue-token", "", "print a signed access token for user[:role] and exit")
	flag.Parse()

	logrus.SetFormatter(new(logrus.JSONFormatter))
	logrus.SetOutput(os.Stdout)

	viperInstance, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", cfg.Logging.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if *issueToken != "" {
		user, role, _ := strings.Cut(*issueToken, ":")
		if role == "" {
			role = middleware.RoleUser
		}
		token, err := middleware.IssueToken(cfg.JWT.Secret, cfg.JWT.Issuer, user, role, cfg.JWT.Expiration)
		if err != nil {
			logrus.Fatalf("Cannot issue token. Error: {%s}", err.Error())
		}
		fmt.Println(token)
		return
	}

	appServer.NewServer(cfg)
}
