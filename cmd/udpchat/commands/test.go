package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agonych/udp-chat/internal/cli/credentials"
	"github.com/agonych/udp-chat/internal/cli/prompt"
	"github.com/agonych/udp-chat/pkg/client"
	"github.com/agonych/udp-chat/pkg/config"
	"github.com/agonych/udp-chat/pkg/protocol"
)

var (
	testServer   string
	testTimeout  time.Duration
	testPassword string
	testRoom     string
	testText     string
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run client scenarios against a running server",
	Long: `Run scripted client scenarios against a running UDPChat-AI server.

Each scenario drives the real wire protocol end to end and prints what
it observed. The server address is taken from the configuration unless
--server is given.

Scenarios:
  hello    handshake, server identity verification, HELLO round-trip
           and a replay probe that must be rejected
  login    authenticate (or auto-provision) by email and save the
           session for later runs
  chat     resume the saved session, enter a room and exchange a
           message

Examples:
  # Verify the encryption layer of a local server
  udpchat test hello

  # Log in and save the session
  udpchat test login ann@example.com

  # Post a message to the lobby with the saved session
  udpchat test chat --message "hi all"`,
}

var testHelloCmd = &cobra.Command{
	Use:   "hello",
	Short: "Handshake, HELLO round-trip and replay probe",
	Args:  cobra.NoArgs,
	RunE:  runTestHello,
}

var testLoginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Log in and save the session for later scenarios",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTestLogin,
}

var testChatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Resume the saved session and chat in a room",
	Args:  cobra.NoArgs,
	RunE:  runTestChat,
}

func init() {
	testCmd.PersistentFlags().StringVar(&testServer, "server", "", "Server address (default: from config)")
	testCmd.PersistentFlags().DurationVar(&testTimeout, "timeout", 10*time.Second, "Scenario timeout")
	testLoginCmd.Flags().StringVarP(&testPassword, "password", "p", "", "Password (prompted when the account requires one)")
	testChatCmd.Flags().StringVar(&testRoom, "room", "lobby", "Room to chat in (created when missing)")
	testChatCmd.Flags().StringVarP(&testText, "message", "m", "Hello from udpchat!", "Message to post")
	testCmd.AddCommand(testHelloCmd)
	testCmd.AddCommand(testLoginCmd)
	testCmd.AddCommand(testChatCmd)
}

// scenarioAddr resolves the target server for a scenario run.
func scenarioAddr() (string, error) {
	if testServer != "" {
		return testServer, nil
	}
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return "", err
	}
	return serverAddr(cfg), nil
}

func runTestHello(cmd *cobra.Command, args []string) error {
	addr, err := scenarioAddr()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	cl, err := client.Dial(ctx, addr, client.WithHandshakeTimeout(testTimeout))
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}
	defer func() { _ = cl.Close() }()

	fmt.Printf("[OK] Connected to session %s\n", cl.SessionID())
	fmt.Println("[OK] Session key decrypted and verified")
	fmt.Printf("[OK] Server key fingerprint %s\n", cl.Fingerprint())

	// One sealed HELLO, transmitted twice. The first copy must be
	// answered, the second must bounce off the nonce ledger.
	datagram, err := cl.SealPacket(protocol.PacketHello, nil)
	if err != nil {
		return err
	}
	if err := cl.SendDatagram(datagram); err != nil {
		return err
	}
	pkt, err := cl.WaitFor(ctx, protocol.PacketHello)
	if err != nil {
		return fmt.Errorf("HELLO round-trip failed: %w", err)
	}
	fmt.Printf("[OK] Server says: %s\n", pkt.Message)

	if err := cl.SendDatagram(datagram); err != nil {
		return err
	}
	pkt, err = cl.Recv(ctx)
	if err == nil {
		return fmt.Errorf("replayed datagram was accepted: got %s", pkt.Type)
	}
	var terr *client.TransportError
	if !errors.As(err, &terr) {
		return fmt.Errorf("replayed datagram: %w", err)
	}
	fmt.Printf("[OK] Replay rejected: %s\n", terr.Message)

	fmt.Println()
	fmt.Println("Scenario hello passed.")
	return nil
}

func runTestLogin(cmd *cobra.Command, args []string) error {
	addr, err := scenarioAddr()
	if err != nil {
		return err
	}

	var email string
	if len(args) == 1 {
		email = args[0]
	} else {
		email, err = prompt.InputRequired("Email")
		if err != nil {
			if prompt.IsAborted(err) {
				return nil
			}
			return err
		}
	}
	email = strings.ToLower(strings.TrimSpace(email))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	cl, err := client.Dial(ctx, addr, client.WithHandshakeTimeout(testTimeout))
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}
	defer func() { _ = cl.Close() }()
	fmt.Printf("[OK] Connected to session %s\n", cl.SessionID())

	welcome, err := loginSession(ctx, cl, email, testPassword)
	if err != nil {
		if prompt.IsAborted(err) {
			return nil
		}
		return err
	}
	fmt.Printf("[OK] Logged in as %s <%s>\n", welcome.User.Name, welcome.User.Email)

	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	contextName := store.GetCurrentContextName()
	if contextName == "" {
		contextName = credentials.GenerateContextName(addr)
	}
	if err := store.SetContext(contextName, &credentials.Context{
		ServerAddr: addr,
		Email:      email,
	}); err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	if err := store.UseContext(contextName); err != nil {
		return err
	}
	if err := store.SaveSession(cl.SessionID(), cl.SessionKeyHex(), cl.Fingerprint()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	fmt.Printf("[OK] Session saved to %s\n", store.ConfigPath())

	fmt.Println()
	fmt.Println("Scenario login passed. Run 'udpchat test chat' to chat.")
	return nil
}

// loginSession drives the LOGIN exchange, prompting for a password when
// the account requires one.
func loginSession(ctx context.Context, cl *client.Client, email, password string) (*protocol.WelcomeData, error) {
	for {
		if err := cl.Send(protocol.PacketLogin, protocol.LoginData{Email: email, Password: password}); err != nil {
			return nil, err
		}
		pkt, err := cl.WaitFor(ctx,
			protocol.PacketWelcome,
			protocol.PacketPleaseLogin,
			protocol.PacketUnauthorised,
			protocol.PacketError)
		if err != nil {
			return nil, fmt.Errorf("LOGIN failed: %w", err)
		}

		switch pkt.Type {
		case protocol.PacketWelcome:
			var data protocol.WelcomeData
			if err := pkt.DecodeData(&data); err != nil {
				return nil, err
			}
			return &data, nil

		case protocol.PacketPleaseLogin:
			if password != "" {
				return nil, errors.New("server rejected the password and asked again")
			}
			var data protocol.PleaseLoginData
			if err := pkt.DecodeData(&data); err != nil {
				return nil, err
			}
			if data.Message != "" {
				fmt.Println(data.Message)
			}
			password, err = prompt.Password("Password")
			if err != nil {
				return nil, err
			}

		case protocol.PacketUnauthorised:
			var data protocol.ErrorData
			_ = pkt.DecodeData(&data)
			return nil, fmt.Errorf("login rejected: %s", data.Message)

		default:
			var data protocol.ErrorData
			_ = pkt.DecodeData(&data)
			return nil, fmt.Errorf("login failed: %s", data.Message)
		}
	}
}

func runTestChat(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	saved, err := store.GetCurrentContext()
	if err != nil {
		return credentials.ErrNoSavedSession
	}
	if !saved.HasSession() {
		return credentials.ErrNoSavedSession
	}

	addr := testServer
	if addr == "" {
		addr = saved.ServerAddr
	}
	if addr == "" {
		if addr, err = scenarioAddr(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	opts := []client.Option{client.WithHandshakeTimeout(testTimeout)}
	if saved.Fingerprint != "" {
		opts = append(opts, client.WithPinnedFingerprint(saved.Fingerprint))
	}
	cl, err := client.Dial(ctx, addr, opts...)
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}
	defer func() { _ = cl.Close() }()
	fmt.Printf("[OK] Connected to session %s\n", cl.SessionID())

	// Resume the saved identity on the fresh session.
	if err := cl.Send(protocol.PacketMergeSession, protocol.MergeSessionData{
		OldSessionID:  saved.SessionID,
		OldSessionKey: saved.SessionKey,
	}); err != nil {
		return err
	}
	pkt, err := cl.WaitFor(ctx, protocol.PacketWelcome, protocol.PacketMergeSessionFailed)
	if err != nil {
		return fmt.Errorf("MERGE_SESSION failed: %w", err)
	}
	if pkt.Type == protocol.PacketMergeSessionFailed {
		_ = store.ClearCurrentContext()
		return errors.New("saved session was not accepted - run 'udpchat test login' again")
	}
	var welcome protocol.WelcomeData
	if err := pkt.DecodeData(&welcome); err != nil {
		return err
	}
	fmt.Printf("[OK] Resumed as %s <%s>\n", welcome.User.Name, welcome.User.Email)

	// The merged session replaces the saved one for the next run.
	if err := store.SaveSession(cl.SessionID(), cl.SessionKeyHex(), cl.Fingerprint()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	// STATUS must report the re-bound identity.
	if err := cl.Send(protocol.PacketStatus, nil); err != nil {
		return err
	}
	if _, err := cl.WaitFor(ctx, protocol.PacketStatus); err != nil {
		return fmt.Errorf("STATUS failed: %w", err)
	}
	fmt.Println("[OK] STATUS confirms the merged session")

	roomID, err := enterRoom(ctx, cl, testRoom)
	if err != nil {
		return err
	}
	fmt.Printf("[OK] In room %q (%s)\n", testRoom, roomID)

	if err := cl.Send(protocol.PacketMessage, protocol.MessageData{RoomID: roomID, Content: testText}); err != nil {
		return err
	}

	// The author hears the message twice: MESSAGE_SENT as confirmation
	// and the MESSAGE broadcast as a room member. Either can arrive
	// first.
	var sent *protocol.MessageSentData
	var event *protocol.MessageEvent
	for sent == nil || event == nil {
		pkt, err := cl.WaitFor(ctx,
			protocol.PacketMessageSent,
			protocol.PacketMessage,
			protocol.PacketError)
		if err != nil {
			return fmt.Errorf("MESSAGE failed: %w", err)
		}
		switch pkt.Type {
		case protocol.PacketError:
			var data protocol.ErrorData
			_ = pkt.DecodeData(&data)
			return fmt.Errorf("message rejected: %s", data.Message)
		case protocol.PacketMessageSent:
			sent = &protocol.MessageSentData{}
			if err := pkt.DecodeData(sent); err != nil {
				return err
			}
		case protocol.PacketMessage:
			event = &protocol.MessageEvent{}
			if err := pkt.DecodeData(event); err != nil {
				return err
			}
		}
	}
	fmt.Printf("[OK] Message %d confirmed\n", sent.MessageID)
	fmt.Printf("[OK] Broadcast received: %s: %s\n", event.Name, event.Content)

	if err := cl.Send(protocol.PacketListMessages, protocol.RoomRequestData{RoomID: roomID}); err != nil {
		return err
	}
	pkt, err = cl.WaitFor(ctx, protocol.PacketRoomHistory)
	if err != nil {
		return fmt.Errorf("LIST_MESSAGES failed: %w", err)
	}
	var history []protocol.HistoryEntry
	if err := pkt.DecodeData(&history); err != nil {
		return err
	}
	fmt.Println()
	fmt.Printf("Last %d messages in %s:\n", len(history), testRoom)
	for _, entry := range history {
		stamp := time.Unix(entry.Timestamp, 0).Format("15:04:05")
		fmt.Printf("  %s  %s: %s\n", stamp, entry.Name, entry.Content)
	}

	fmt.Println()
	fmt.Println("Scenario chat passed.")
	return nil
}

// enterRoom makes the session a member of the named room, creating the
// room when it does not exist. Joining a room the user is already in is
// a silent no-op, so the JOIN_ROOM reply is not awaited; the server
// processes requests in order, so membership holds by the time the next
// request runs.
func enterRoom(ctx context.Context, cl *client.Client, name string) (string, error) {
	if err := cl.Send(protocol.PacketListRooms, nil); err != nil {
		return "", err
	}
	pkt, err := cl.WaitFor(ctx, protocol.PacketRoomList)
	if err != nil {
		return "", fmt.Errorf("LIST_ROOMS failed: %w", err)
	}
	var rooms []protocol.RoomInfo
	if err := pkt.DecodeData(&rooms); err != nil {
		return "", err
	}

	for _, room := range rooms {
		if room.Name != name {
			continue
		}
		if err := cl.Send(protocol.PacketJoinRoom, protocol.RoomRequestData{RoomID: room.RoomID}); err != nil {
			return "", err
		}
		return room.RoomID, nil
	}

	if err := cl.Send(protocol.PacketCreateRoom, protocol.CreateRoomData{Name: name}); err != nil {
		return "", err
	}
	pkt, err = cl.WaitFor(ctx, protocol.PacketRoomCreated, protocol.PacketError)
	if err != nil {
		return "", fmt.Errorf("CREATE_ROOM failed: %w", err)
	}
	if pkt.Type == protocol.PacketError {
		var data protocol.ErrorData
		_ = pkt.DecodeData(&data)
		return "", fmt.Errorf("room not created: %s", data.Message)
	}
	var ref protocol.RoomRef
	if err := pkt.DecodeData(&ref); err != nil {
		return "", err
	}
	return ref.RoomID, nil
}
