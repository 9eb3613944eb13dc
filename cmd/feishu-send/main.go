// feishu-send delivers a single message to the bot's chats from the
// command line. Application credentials come from the environment (see
// the config package); the message comes from flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/feishubot/feishubot"
	"github.com/feishubot/feishubot/config"
)

func main() {
	configureLogging()

	if err := run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("send failed")
	}
}

func run(ctx context.Context) error {
	text := flag.String("text", "", "plain text message to send")
	imageURL := flag.String("image", "", "URL of an image to upload and send")
	cardFile := flag.String("card", "", "path to a YAML interactive card document")
	shared := flag.Bool("shared", false, "share card state updates across chats")
	postTitle := flag.String("post-title", "", "title for a rich post message")
	postFile := flag.String("post", "", "path to a YAML rich post content document")
	chats := flag.String("chats", "", "comma-separated chat IDs (default: all known groups)")
	flag.Parse()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	bot, err := feishubot.New(cfg)
	if err != nil {
		return fmt.Errorf("client configuration failed: %w", err)
	}

	var targets []string
	if *chats != "" {
		targets = strings.Split(*chats, ",")
	}

	var results []feishubot.SendResult
	switch {
	case *text != "":
		results, err = bot.SendText(ctx, *text, targets...)
	case *imageURL != "":
		results, err = bot.SendImage(ctx, *imageURL, targets...)
	case *cardFile != "":
		var card feishubot.Card
		if err := readYAML(*cardFile, &card); err != nil {
			return err
		}
		results, err = bot.SendCard(ctx, card, *shared, targets...)
	case *postFile != "":
		var content []feishubot.PostLine
		if err := readYAML(*postFile, &content); err != nil {
			return err
		}
		results, err = bot.SendPost(ctx, *postTitle, content, targets...)
	default:
		return fmt.Errorf("one of -text, -image, -card or -post is required")
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			log.Warn().Str("chat_id", r.ChatID).Err(r.Err).Msg("chat send failed")
			continue
		}
		log.Info().Str("chat_id", r.ChatID).Msg("sent")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sends failed", failed, len(results))
	}

	return nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func configureLogging() {
	// default level is Info
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}
