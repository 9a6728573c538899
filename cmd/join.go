package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/rakimsSpiritual/tpsc-final/internal/capture"
	"github.com/rakimsSpiritual/tpsc-final/internal/config"
	"github.com/rakimsSpiritual/tpsc-final/internal/session"
	"github.com/rakimsSpiritual/tpsc-final/internal/signaling"
)

var (
	flagJoinUser      string
	flagJoinDomain    string
	flagJoinWSURL     string
	flagJoinSTUN      string
	flagJoinTURN      string
	flagJoinTURNUser  string
	flagJoinTURNPass  string
	flagJoinICEURL    string
	flagJoinICEUser   string
	flagJoinICESecret string
)

var joinCmd = &cobra.Command{
	Use:   "join <meeting-id>",
	Short: "Join a meeting as a participant",
	Long: `Join a meeting. Every other participant in the meeting gets a direct
peer connection; local microphone, camera and screen capture are controlled
interactively:

  a        toggle microphone
  c        start camera
  s        start screen share
  n        stop video
  /q       leave the meeting
  <text>   send a chat message`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJoin(args[0])
	},
}

func init() {
	joinCmd.Flags().StringVarP(&flagJoinUser, "user", "u", "", "participant identity (required)")
	joinCmd.Flags().StringVar(&flagJoinDomain, "domain", "", "relay domain")
	joinCmd.Flags().StringVar(&flagJoinWSURL, "ws-url", "", "relay websocket URL (overrides domain)")
	joinCmd.Flags().StringVar(&flagJoinSTUN, "stun", "", "STUN server URL")
	joinCmd.Flags().StringVar(&flagJoinTURN, "turn", "", "TURN server")
	joinCmd.Flags().StringVar(&flagJoinTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagJoinTURNPass, "turn-pass", "", "TURN password")
	joinCmd.Flags().StringVar(&flagJoinICEURL, "ice-url", "", "traversal credential service URL")
	joinCmd.Flags().StringVar(&flagJoinICEUser, "ice-user", "", "traversal credential service username")
	joinCmd.Flags().StringVar(&flagJoinICESecret, "ice-secret", "", "traversal credential service secret")
	joinCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(joinCmd)
}

func runJoin(meetingID string) error {
	cfg, err := config.Load(config.Options{
		Domain:         flagJoinDomain,
		WebSocketURL:   flagJoinWSURL,
		STUNServer:     flagJoinSTUN,
		TURNServer:     flagJoinTURN,
		TURNUser:       flagJoinTURNUser,
		TURNPass:       flagJoinTURNPass,
		ICEFetchURL:    flagJoinICEURL,
		ICEFetchUser:   flagJoinICEUser,
		ICEFetchSecret: flagJoinICESecret,
	})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	iceServers := config.FetchICEServers(ctx, cfg)

	devices, err := capture.NewMediaDevices()
	if err != nil {
		return fmt.Errorf("set up media devices: %w", err)
	}

	client := signaling.NewClient(cfg.WebSocketURL)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}
	defer client.Close()

	handler := signaling.NewHandler(client)
	go handler.Start()

	api := webrtc.NewAPI(webrtc.WithMediaEngine(devices.MediaEngine()))

	sess := session.New(session.Options{
		UserID:    flagJoinUser,
		MeetingID: meetingID,
		Transport: client,
		Handler:   handler,
		Factory:   session.NewPionFactory(api, webrtc.Configuration{ICEServers: iceServers}),
		Devices:   devices,
		OnRemoteTrack: func(remoteUserID string, track *webrtc.TrackRemote) {
			slog.Info("remote media", "user", remoteUserID, "kind", track.Kind())
		},
		OnChat: func(user, message string) {
			fmt.Printf("[%s] %s\n", user, message)
		},
	})

	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()

	go readCommands(ctx, sess, stop)

	if err := <-errCh; err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// readCommands drives the session from stdin. This is a minimal control
// surface; a real UI sits in front of the same session methods.
func readCommands(ctx context.Context, sess *session.Session, quit func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "a":
			sess.ToggleAudio()
		case "c":
			sess.SetVideoMode(session.VideoCamera)
		case "s":
			sess.SetVideoMode(session.VideoScreenShare)
		case "n":
			sess.SetVideoMode(session.VideoNone)
		case "/q":
			quit()
			return
		default:
			sess.SendChat(line)
		}
	}
}
