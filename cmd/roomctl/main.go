// roomctl is the administrative companion of chatd: it creates rooms
// and inspects the message store. Rooms are provisioned here, not by
// chat clients.
//
// Usage:
//
//	roomctl seed -id building:42 -type BUILDING -name "Tower A"
//	roomctl list
//	roomctl tail -room building:42 -n 20
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/heaming/zipper-sub001/domain"
	"github.com/heaming/zipper-sub001/repositories"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"WARN"`
}

func main() {
	_ = godotenv.Load()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "seed":
		seed(config, os.Args[2:])
	case "list":
		list(config)
	case "tail":
		tail(config, os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: roomctl <seed|list|tail> [flags]")
	os.Exit(2)
}

func seed(config Config, args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	id := fs.String("id", "", "room id (e.g. building:42)")
	roomType := fs.String("type", string(domain.RoomTypeBuilding), "BUILDING or TOPIC")
	name := fs.String("name", "", "display name")
	postID := fs.String("post", "", "linked post id (TOPIC rooms)")
	_ = fs.Parse(args)

	if *id == "" || *name == "" {
		fmt.Fprintln(os.Stderr, "seed: -id and -name are required")
		os.Exit(2)
	}

	db := openBadger(config, false)
	defer db.Close()

	room := domain.Room{
		ID:   domain.RoomID(*id),
		Type: domain.RoomType(*roomType),
		Name: *name,
	}
	if *postID != "" {
		room.LinkedPostID = lo.ToPtr(*postID)
	}

	if err := repositories.NewRoomRepository(db).Save(room); err != nil {
		log.Fatalf("Failed to save room: %v", err)
	}
	color.Green.Printf("Room %s created\n", room.ID)
}

func list(config Config) {
	db := openBadger(config, true)
	defer db.Close()

	rooms, err := repositories.NewRoomRepository(db).List()
	if err != nil {
		log.Fatalf("Failed to list rooms: %v", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Type", "Name", "Linked Post"})
	for _, room := range rooms {
		linked := ""
		if room.LinkedPostID != nil {
			linked = *room.LinkedPostID
		}
		table.Append([]string{string(room.ID), string(room.Type), room.Name, linked})
	}
	table.Render()
	color.Cyan.Printf("%d room(s)\n", len(rooms))
}

func tail(config Config, args []string) {
	fs := flag.NewFlagSet("tail", flag.ExitOnError)
	roomID := fs.String("room", "", "room id")
	n := fs.Int("n", 20, "number of messages")
	_ = fs.Parse(args)

	if *roomID == "" {
		fmt.Fprintln(os.Stderr, "tail: -room is required")
		os.Exit(2)
	}

	db := openBadger(config, true)
	defer db.Close()

	logger := logs.GetLoggerFromString(config.LogLevel)
	repo := repositories.NewMessageRepository(db, logger)

	messages, hasMore, _, err := repo.Page(domain.RoomID(*roomID), nil, *n)
	if err != nil {
		log.Fatalf("Failed to read messages: %v", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "Sender", "Type", "Content"})
	// Newest first from the store; print oldest first like a log
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		content := m.Content
		if m.Type == domain.MessageTypeImage {
			content = m.ImageURL
		}
		table.Append([]string{
			m.CreatedAt.Format(time.RFC3339),
			m.Nickname,
			string(m.Type),
			content,
		})
	}
	table.Render()
	if hasMore {
		color.Yellow.Println("older messages truncated")
	}
}

// openBadger opens the store. Read-only mode bypasses the lock guard so
// inspection works while chatd is running.
func openBadger(config Config, readOnly bool) *badger.DB {
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING)
	if readOnly {
		opts = opts.WithReadOnly(true).WithBypassLockGuard(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	return db
}
