// Command filerelay-peer is an interactive terminal client: it connects
// to a hub, lets the user chat, send files, and accept or reject
// incoming transfer offers.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	survey "github.com/AlecAivazis/survey/v2"
	"github.com/buger/goterm"
	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/filerelay/filerelay/config"
	"github.com/filerelay/filerelay/peerclient"
	"github.com/filerelay/filerelay/wire"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		name       string
		storageDir string
	)

	cmd := &cobra.Command{
		Use:   "filerelay-peer [hub-addr]",
		Short: "Connect to a filerelay hub and chat or transfer files interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				if err := survey.AskOne(&survey.Input{Message: "Display name:"}, &name); err != nil {
					return err
				}
			}

			cfg := config.New(config.WithStorageDir(storageDir))
			return runSession(args[0], name, cfg)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "display name to present to the hub")
	cmd.Flags().StringVarP(&storageDir, "storage-dir", "s", config.DefaultStorageDir, "directory to save downloads into")
	return cmd
}

func runSession(addr, name string, cfg *config.Config) error {
	ctx := context.Background()
	client, err := peerclient.Dial(ctx, addr, name, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	offers := make(chan peerclient.DownloadOffer, 8)
	pb := newProgressBar()
	client.WithTrace(&peerclient.Trace{
		DownloadOffered: func(o peerclient.DownloadOffer) { offers <- o },
		ChunkAcked:      pb.onChunkAcked,
	})
	client.OnChat(printChat)

	fmt.Printf("connected as %s\n", client.ID())

	go client.Run()
	go handleOffers(client, offers)

	return replLoop(ctx, client)
}

func printChat(m *wire.Chat) {
	if m.Target == "" {
		fmt.Printf("[%s] %s\n", m.Sender, m.Content)
	} else {
		fmt.Printf("[%s -> you] %s\n", m.Sender, m.Content)
	}
}

func handleOffers(client *peerclient.Client, offers <-chan peerclient.DownloadOffer) {
	for o := range offers {
		accept := false
		prompt := fmt.Sprintf("Accept %q (%s) from %s?", o.FileName, units.HumanSize(float64(o.FileSize)), o.SenderID)
		if err := survey.AskOne(&survey.Confirm{Message: prompt}, &accept); err != nil {
			continue
		}
		if accept {
			path, err := client.AcceptDownload(o.TransferID)
			if err != nil {
				fmt.Println("accept failed:", err)
				continue
			}
			fmt.Println("saving to", path)
		} else {
			if err := client.RejectDownload(o.TransferID); err != nil {
				fmt.Println("reject failed:", err)
			}
		}
	}
}

func replLoop(ctx context.Context, client *peerclient.Client) error {
	for {
		var action string
		if err := survey.AskOne(&survey.Select{
			Message: "Action:",
			Options: []string{"chat", "send", "list", "quit"},
		}, &action); err != nil {
			return err
		}

		switch action {
		case "chat":
			var target, content string
			survey.AskOne(&survey.Input{Message: "Target peer id (blank for broadcast):"}, &target)
			survey.AskOne(&survey.Input{Message: "Message:"}, &content)
			if err := client.SendChat(target, content); err != nil {
				fmt.Println("send failed:", err)
			}
		case "send":
			var target, path string
			survey.AskOne(&survey.Input{Message: "Target peer id:"}, &target)
			survey.AskOne(&survey.Input{Message: "File path:"}, &path)
			if err := client.Upload(ctx, target, path); err != nil {
				fmt.Println("upload failed:", err)
			} else {
				fmt.Println()
				fmt.Println("upload complete")
			}
		case "list":
			for _, o := range client.PendingDownloads() {
				fmt.Printf("#%d %s %q (%s) from %s\n", o.Ordinal, o.TransferID, o.FileName, units.HumanSize(float64(o.FileSize)), o.SenderID)
			}
		case "quit":
			return nil
		}
	}
}

// progressBar renders a live-updating chunk counter for in-flight
// uploads, sized to the terminal width the way docker-compose's tty
// progress writer does (goterm.Width()).
type progressBar struct {
	mu    sync.Mutex
	acked map[string]int32
}

func newProgressBar() *progressBar { return &progressBar{acked: make(map[string]int32)} }

func (p *progressBar) onChunkAcked(transferID string, seq int32) {
	p.mu.Lock()
	p.acked[transferID] = seq + 1
	n := p.acked[transferID]
	p.mu.Unlock()

	width := goterm.Width()
	if width <= 20 {
		width = 40
	}
	barWidth := width - 16
	filled := int(n) % (barWidth + 1)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
	fmt.Printf("\r[%s] %d chunks sent", bar, n)
	goterm.Flush()
}
