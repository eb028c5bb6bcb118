package integration

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"notemesh/internal/broker/memory"
	"notemesh/internal/domain"
	"notemesh/internal/event"
	"notemesh/internal/notes"
	"notemesh/internal/notifier"
	"notemesh/internal/rpc"
	"notemesh/internal/social"
	storemem "notemesh/internal/store/memory"
)

const (
	rpcQueue   = "note_rpc_queue"
	eventQueue = "notification_event_queue"
)

var _ = Describe("Cross-service messaging", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc

		transport        *memory.Transport
		noteService      *notes.Service
		socialService    *social.Service
		notifierService  *notifier.Service
		notificationRepo *storemem.NotificationRepository
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		ctx, cancel = context.WithCancel(context.Background())
		transport = memory.NewTransport(100)

		// Notes role: repository, service, RPC server.
		noteRepo := storemem.NewNoteRepository()
		noteService = notes.NewService(noteRepo, logger)
		rpcServer := rpc.NewServer(transport, rpcQueue, true, noteService.LookupHandler(), logger)
		Expect(rpcServer.Start(ctx)).To(Succeed())

		// Social role: RPC client, event publisher, service.
		rpcClient, err := rpc.NewClient(ctx, transport, rpcQueue, true, 2*time.Second, logger)
		Expect(err).NotTo(HaveOccurred())
		publisher, err := event.NewPublisher(ctx, transport, eventQueue, true, logger)
		Expect(err).NotTo(HaveOccurred())
		likeRepo := storemem.NewLikeRepository()
		cache := storemem.NewLikeCountCache()
		socialService = social.NewService(likeRepo, cache, time.Minute, rpcClient, publisher, logger)

		// Notifications role: event consumer and read service.
		notificationRepo = storemem.NewNotificationRepository()
		consumer := notifier.NewConsumer(transport, eventQueue, true, notificationRepo, logger)
		Expect(consumer.Start(ctx)).To(Succeed())
		notifierService = notifier.NewService(notificationRepo, logger)
	})

	AfterEach(func() {
		cancel()
		_ = transport.Close()
	})

	createNote := func(noteID, title, owner string) {
		err := noteService.Create(ctx, &domain.Note{
			NoteID:      noteID,
			Title:       title,
			Description: "a note body",
			Status:      "active",
			UserID:      owner,
		})
		Expect(err).NotTo(HaveOccurred())
	}

	Context("when a user likes an existing note", func() {
		It("materializes a notification for the note's owner", func() {
			createNote("note-1", "Groceries", "bob")

			Expect(socialService.Like(ctx, "note-1", "alice")).To(Succeed())

			Eventually(func() int {
				return notificationRepo.Count()
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(1))

			notifications, err := notifierService.ListForUser(ctx, "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(notifications).To(HaveLen(1))
			Expect(notifications[0].Message).To(Equal(`alice liked your note "Groceries"`))
			Expect(notifications[0].IsRead).To(BeFalse())

			count, err := socialService.LikesForNote(ctx, "note-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("rejects a second like from the same user without another notification", func() {
			createNote("note-1", "Groceries", "bob")

			Expect(socialService.Like(ctx, "note-1", "alice")).To(Succeed())
			Eventually(func() int {
				return notificationRepo.Count()
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(1))

			err := socialService.Like(ctx, "note-1", "alice")
			Expect(errors.Is(err, domain.ErrAlreadyLiked)).To(BeTrue())

			Consistently(func() int {
				return notificationRepo.Count()
			}, 200*time.Millisecond, 20*time.Millisecond).Should(Equal(1))
		})
	})

	Context("when a user likes a note that does not exist", func() {
		It("surfaces not-found from the remote lookup", func() {
			err := socialService.Like(ctx, "ghost-note", "alice")
			Expect(errors.Is(err, domain.ErrNoteNotFound)).To(BeTrue())
			Expect(notificationRepo.Count()).To(BeZero())
		})
	})

	Context("when a user shares a note", func() {
		It("delivers the share message to the owner", func() {
			createNote("note-1", "Groceries", "bob")

			Expect(socialService.Share(ctx, "note-1", "alice", "worth a read")).To(Succeed())

			Eventually(func() int {
				return notificationRepo.Count()
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(1))

			notifications, err := notifierService.ListForUser(ctx, "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(notifications[0].Message).To(Equal("worth a read"))
		})
	})

	Context("when the notification store fails transiently", func() {
		It("retries the event until it persists", func() {
			createNote("note-1", "Groceries", "bob")
			notificationRepo.FailNext(2)

			Expect(socialService.Like(ctx, "note-1", "alice")).To(Succeed())

			Eventually(func() int {
				return notificationRepo.Count()
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(1))
		})
	})

	Context("when many likes land concurrently", func() {
		It("notifies the owner once per like", func() {
			createNote("note-1", "Groceries", "bob")

			const likers = 10
			done := make(chan error, likers)
			for i := 0; i < likers; i++ {
				go func(i int) {
					done <- socialService.Like(ctx, "note-1", userName(i))
				}(i)
			}
			for i := 0; i < likers; i++ {
				Expect(<-done).To(Succeed())
			}

			Eventually(func() int {
				return notificationRepo.Count()
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(likers))

			count, err := socialService.LikesForNote(ctx, "note-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(likers))
		})
	})

	Context("when reading notifications back", func() {
		It("marks them read through the notifier service", func() {
			createNote("note-1", "Groceries", "bob")
			Expect(socialService.Like(ctx, "note-1", "alice")).To(Succeed())

			Eventually(func() int {
				return notificationRepo.Count()
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(1))

			notifications, err := notifierService.ListForUser(ctx, "bob")
			Expect(err).NotTo(HaveOccurred())

			Expect(notifierService.MarkRead(ctx, notifications[0].ID)).To(Succeed())

			notifications, err = notifierService.ListForUser(ctx, "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(notifications[0].IsRead).To(BeTrue())
		})
	})
})

// userName generates a distinct liker name per index.
func userName(i int) string {
	return string(rune('a'+i)) + "-user"
}
