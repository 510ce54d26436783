package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	junoauth "github.com/SwiftAkira/JunoKit-sub000/juno-auth"
	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	junows "github.com/SwiftAkira/JunoKit-sub000/juno-ws"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/wsclient"
	"github.com/golang-jwt/jwt/v5"
	"github.com/urfave/cli/v2"
)

var opts struct {
	URL    string
	Token  string
	UserID string
	Email  string
}

var service = junocli.NewService("junokit-chat")

func main() {
	app := junocli.App(
		service,
		action,
		append(
			junocli.CommonFlags,
			junocli.StringFlag("url", "Relay websocket url", &opts.URL, "ws://localhost:3001/ws"),
			junocli.StringFlag("token", "Bearer token; minted from --jwt-secret when empty", &opts.Token),
			junocli.StringFlag("jwt-secret", "Shared HS256 secret used to mint a local token", &junoauth.AuthOpts.JWTSecret),
			junocli.StringFlag("user-id", "Subject of the minted token", &opts.UserID, "local-user"),
			junocli.StringFlag("user-email", "Email claim of the minted token", &opts.Email),
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(c *cli.Context) error {
	token, err := bearerToken()
	if err != nil {
		return err
	}

	client := wsclient.New(wsclient.Options{
		URL:    opts.URL,
		Token:  token,
		Logger: junocli.Logger(service),
	})

	var (
		mu             sync.Mutex
		conversationID string
	)
	client.On(wsclient.EventMessage, func(ev wsclient.Event) {
		fmt.Printf("< %s\n", ev.Raw)
	})
	client.On(junows.TypeAIResponse, func(ev wsclient.Event) {
		var frame junows.AIResponseFrame
		if err := ev.Decode(&frame); err == nil {
			mu.Lock()
			conversationID = frame.ConversationID
			mu.Unlock()
		}
	})
	client.On(wsclient.EventReconnectFailed, func(wsclient.Event) {
		fmt.Println("! gave up reconnecting, type /quit to exit")
	})

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to %v: %w", opts.URL, err)
	}
	defer client.Disconnect()

	fmt.Println("connected; commands: /status <s>, /subscribe a,b, /ping, /debug, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		command, arg, _ := strings.Cut(line, " ")
		switch command {
		case "/quit":
			return nil
		case "/ping":
			err = client.Ping()
		case "/debug":
			err = client.DebugStatus()
		case "/status":
			err = client.UpdateUserStatus(strings.TrimSpace(arg))
		case "/subscribe":
			err = client.SubscribeToNotifications(strings.Split(arg, ","))
		default:
			mu.Lock()
			conv := conversationID
			mu.Unlock()
			err = client.SendChatMessage(line, conv)
		}
		if err != nil {
			fmt.Printf("! %v\n", err)
		}
	}
	return scanner.Err()
}

func bearerToken() (string, error) {
	if opts.Token != "" || junoauth.AuthOpts.JWTSecret == "" {
		return opts.Token, nil
	}

	claims := jwt.MapClaims{
		"sub": opts.UserID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	}
	if opts.Email != "" {
		claims["email"] = opts.Email
	}
	return junoauth.HMAC{Secret: []byte(junoauth.AuthOpts.JWTSecret)}.Sign(claims)
}
