package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/omochice/chat-relay/internal/client"
	"github.com/omochice/chat-relay/pkg/protocol"
)

func main() {
	serverAddr := flag.String("server", "localhost:8080", "Server address (e.g., localhost:8080)")
	username := flag.String("user", "", "Username for chat")
	password := flag.String("pass", "", "Password for chat")
	useWS := flag.Bool("ws", false, "Connect over WebSocket instead of raw TCP")
	flag.Parse()

	if *username == "" {
		log.Fatal("Username is required. Use -user flag")
	}

	var opts []client.Option
	if *useWS {
		opts = append(opts, client.WithWebSocket())
	}
	c := client.New(*serverAddr, *username, opts...)

	if err := c.Connect(); err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer c.Disconnect()

	log.Printf("Connected to %s as %s", *serverAddr, *username)

	if err := c.Authenticate(*password); err != nil {
		log.Fatalf("Failed to send auth request: %v", err)
	}

	// Display incoming payloads until the server closes the connection.
	go func() {
		for p := range c.Messages() {
			switch p.Type {
			case protocol.TypeMsg:
				fmt.Printf("%s> %s\n", p.User, p.Text)
			case protocol.TypePrv:
				fmt.Printf("%s (private)> %s\n", p.User, p.Text)
			case protocol.TypeSrv:
				fmt.Printf("*** %s\n", p.Text)
			}
		}
	}()

	fmt.Println("Welcome! Type messages, '/prv <user> <text>' for a private message, or '/quit' to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			cmd, rest, _ := strings.Cut(input, " ")
			switch cmd {
			case "/quit":
				fmt.Println("Exiting...")
				return
			case "/prv":
				to, text, ok := strings.Cut(rest, " ")
				if !ok || to == "" || text == "" {
					fmt.Println("Usage: /prv <user> <text>")
					continue
				}
				if err := c.SendPrivate(to, text); err != nil {
					log.Printf("Failed to send private message: %v", err)
				}
			default:
				fmt.Printf("Error: unknown command %q\n", cmd)
			}
			continue
		}

		if err := c.Send(input); err != nil {
			log.Printf("Failed to send message: %v", err)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Error reading input: %v", err)
	}

	log.Println("Disconnected from server")
}
