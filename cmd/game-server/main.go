package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli"

	"github.com/happyfacehappyface/squidgame-server/server"
)

// Global websocket connection parameters
const (
	pongWait       = 60 * time.Second
	maxMessageSize = 4096
)

var (
	origin   string
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if origin == "*" {
				return true
			}
			if origin == r.Header.Get("Origin") {
				return true
			}
			return false
		},
	}
)

// Global cookie parameters
var sc *securecookie.SecureCookie

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %s", err)
	}
	app := cli.NewApp()
	app.Name = "squidgame-server"
	app.Usage = "serve elimination game matches over websocket connections"
	app.Version = "0.1"
	app.Action = appEntry
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "host",
			Usage:  "Hostname to listen on",
			Value:  "localhost",
			EnvVar: "LISTEN_HOST",
		},
		cli.IntFlag{
			Name:   "port",
			Usage:  "TCP `port` to listen on",
			Value:  9999,
			EnvVar: "LISTEN_PORT",
		},
		cli.IntFlag{
			Name:   "max-players",
			Usage:  "Maximum players allowed in the room",
			Value:  30,
			EnvVar: "MAX_PLAYERS",
		},
		cli.StringFlag{
			Name:   "hash-key",
			Usage:  "Hash key used for secure cookies",
			EnvVar: "HASH_KEY",
		},
		cli.StringFlag{
			Name:   "block-key",
			Usage:  "Block key used for secure cookies",
			EnvVar: "BLOCK_KEY",
		},
		cli.StringFlag{
			Name:        "origin",
			Usage:       "Sets the allowable origin",
			Value:       "*",
			EnvVar:      "ORIGIN",
			Destination: &origin,
		},
		cli.StringFlag{
			Name:   "log-level,l",
			Usage:  "Log `level` for output",
			Value:  "info",
			EnvVar: "LOG_LEVEL",
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Error(err)
	}
}

func appEntry(c *cli.Context) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	host := c.String("host")
	port := c.Int("port")
	maxPlayers := c.Int("max-players")
	hashKey := []byte(c.String("hash-key"))
	blockKey := []byte(c.String("block-key"))
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "fatal":
		log.SetLevel(log.FatalLevel)
	}

	if len(hashKey) == 0 {
		log.Debug("Generating hashKey")
		hashKey = securecookie.GenerateRandomKey(32)
	}

	switch len(blockKey) {
	case 16, 24, 32:
	case 0:
		log.Debug("encryption disabled")
		blockKey = nil
	default:
		log.Debug("Invalid blockKey size using generated blockKey")
		blockKey = securecookie.GenerateRandomKey(32)
	}

	sc = securecookie.New(hashKey, blockKey)

	s := server.New(maxPlayers)
	go httpRouteHandler(s, host, port)

	<-stop
	log.Info("shutting down")
}

func userCookieHandler(w http.ResponseWriter, r *http.Request) (string, bool) {
	if cookie, err := r.Cookie("userid"); err == nil {
		u := ""
		if err = sc.Decode("userid", cookie.Value, &u); err == nil {
			return u, true
		}
	}
	// No usable cookie, so hand out an identity to come back with.
	u := uuid.NewV4().String()
	encoded, err := sc.Encode("userid", u)
	if err != nil {
		log.Error(err)
		return "", false
	}
	cookie := &http.Cookie{
		Name:  "userid",
		Value: encoded,
	}
	http.SetCookie(w, cookie)
	return u, true
}

func httpRouteHandler(s *server.Server, host string, port int) {
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		u, validUser := userCookieHandler(w, r)
		if !validUser {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		websocketHandler(w, r, u, s)
	})
	err := http.ListenAndServe(fmt.Sprintf("%s:%d", host, port), nil)
	if err != nil {
		log.Fatal(err)
	}
}

func websocketHandler(w http.ResponseWriter, r *http.Request, clientID string, s *server.Server) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error(err)
		return
	}

	ws.SetReadLimit(maxMessageSize)
	if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Error(err)
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	s.HandleConnection(ws, clientID)
}
