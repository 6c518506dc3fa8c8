package gateway_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/zhulik/livepoll/internal/core"
	"github.com/zhulik/livepoll/internal/gateway"
	"github.com/zhulik/livepoll/internal/hub"
	"github.com/zhulik/livepoll/internal/lifecycle"
	"github.com/zhulik/livepoll/internal/registry"
	"github.com/zhulik/livepoll/internal/storage"
	"github.com/zhulik/livepoll/pkg/json"
	"github.com/zhulik/livepoll/testhelpers"
)

const readTimeout = 3 * time.Second

type client struct {
	conn *websocket.Conn
}

func (c *client) send(event string, data any) {
	payload := lo.Must(json.Marshal(map[string]any{"event": event, "data": data}))

	Expect(c.conn.WriteMessage(websocket.TextMessage, payload)).To(Succeed())
}

// expect reads frames until one carries the wanted event, skipping
// unrelated broadcasts.
func (c *client) expect(event string) json.RawMessage {
	for {
		lo.Must0(c.conn.SetReadDeadline(time.Now().Add(readTimeout)))

		_, payload, err := c.conn.ReadMessage()
		Expect(err).NotTo(HaveOccurred())

		envelope := lo.Must(json.Unmarshal[hub.Envelope](payload))
		if envelope.Event == event {
			return envelope.Data
		}
	}
}

func (c *client) close() {
	c.conn.Close() //nolint:errcheck
}

var _ = Describe("Server", func() {
	var (
		injector   *do.Injector
		testServer *httptest.Server
	)

	BeforeEach(func() {
		injector = testhelpers.NewInjector()

		storage.Register(injector)
		hub.Register(injector)
		registry.Register(injector)
		lifecycle.Register(injector)
		gateway.Register(injector)

		server := lo.Must(do.Invoke[*gateway.Server](injector))
		testServer = httptest.NewServer(server.Router)
	})

	AfterEach(func() {
		testServer.Close()
		injector.Shutdown() //nolint:errcheck
	})

	dial := func() *client {
		url := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/ws"

		conn, _, err := websocket.DefaultDialer.Dial(url, nil) //nolint:bodyclose
		Expect(err).NotTo(HaveOccurred())

		DeferCleanup(func() {
			conn.Close() //nolint:errcheck
		})

		return &client{conn: conn}
	}

	join := func(c *client, name string) gateway.StudentResponse {
		c.send(core.EventJoin, gateway.JoinRequest{Name: name})

		return lo.Must(json.Unmarshal[gateway.StudentResponse](c.expect(core.EventStudentRegistered)))
	}

	Describe("student:join", func() {
		It("registers the student and broadcasts the roster", func() {
			teacher := dial()
			student := dial()

			registered := join(student, "Ada")
			Expect(registered.ID).NotTo(BeEmpty())
			Expect(registered.Name).To(Equal("Ada"))

			roster := lo.Must(json.Unmarshal[[]gateway.StudentResponse](teacher.expect(core.EventStudents)))
			Expect(roster).To(Equal([]gateway.StudentResponse{registered}))
		})

		Context("when the name is blank", func() {
			It("sends a targeted validation error", func() {
				student := dial()
				student.send(core.EventJoin, gateway.JoinRequest{Name: "  "})

				failure := lo.Must(json.Unmarshal[gateway.ErrorResponse](student.expect(core.EventPollError)))
				Expect(failure.Kind).To(Equal("VALIDATION_ERROR"))
			})
		})
	})

	Describe("teacher:create_poll", func() {
		It("broadcasts poll:started with full duration and empty tally", func() {
			teacher := dial()
			student := dial()

			teacher.send(core.EventCreatePoll, gateway.CreatePollRequest{
				Question: "Favourite language?",
				Options:  []string{"Go", "Rust"},
				Duration: 30,
			})

			state := lo.Must(json.Unmarshal[core.ActivePollState](teacher.expect(core.EventPollStarted)))
			Expect(state.RemainingTime).To(Equal(30))
			Expect(state.Results).To(HaveLen(2))

			studentState := lo.Must(json.Unmarshal[core.ActivePollState](student.expect(core.EventPollStarted)))
			Expect(studentState.Poll.ID).To(Equal(state.Poll.ID))
		})

		Context("when the payload is invalid", func() {
			It("sends poll:error to the sender only", func() {
				teacher := dial()
				teacher.send(core.EventCreatePoll, gateway.CreatePollRequest{Question: "", Options: []string{"A", "B"}, Duration: 30})

				failure := lo.Must(json.Unmarshal[gateway.ErrorResponse](teacher.expect(core.EventPollError)))
				Expect(failure.Kind).To(Equal("VALIDATION_ERROR"))
			})
		})

		Context("when a poll is in progress with unanswered students", func() {
			It("sends poll:error with POLL_IN_PROGRESS", func() {
				teacher := dial()
				student := dial()
				join(student, "Ada")

				teacher.send(core.EventCreatePoll, gateway.CreatePollRequest{Question: "First?", Options: []string{"A", "B"}, Duration: 60})
				teacher.expect(core.EventPollStarted)

				teacher.send(core.EventCreatePoll, gateway.CreatePollRequest{Question: "Second?", Options: []string{"A", "B"}, Duration: 60})

				failure := lo.Must(json.Unmarshal[gateway.ErrorResponse](teacher.expect(core.EventPollError)))
				Expect(failure.Kind).To(Equal("POLL_IN_PROGRESS"))
			})
		})

		Context("when everyone answered the previous poll", func() {
			It("broadcasts the final tally before the new start", func() {
				teacher := dial()
				student := dial()
				registered := join(student, "Ada")

				teacher.send(core.EventCreatePoll, gateway.CreatePollRequest{Question: "First?", Options: []string{"A", "B"}, Duration: 60})
				first := lo.Must(json.Unmarshal[core.ActivePollState](teacher.expect(core.EventPollStarted)))

				student.send(core.EventVote, gateway.VoteRequest{PollID: first.Poll.ID, StudentID: registered.ID, OptionIndex: 0})
				teacher.expect(core.EventPollResults)

				teacher.send(core.EventCreatePoll, gateway.CreatePollRequest{Question: "Second?", Options: []string{"A", "B"}, Duration: 60})

				ended := lo.Must(json.Unmarshal[[]core.OptionResult](teacher.expect(core.EventPollEnded)))
				Expect(ended[0].Votes).To(Equal(1))

				second := lo.Must(json.Unmarshal[core.ActivePollState](teacher.expect(core.EventPollStarted)))
				Expect(second.Poll.Question).To(Equal("Second?"))
			})
		})
	})

	Describe("student:vote", func() {
		var (
			teacher    *client
			student    *client
			registered gateway.StudentResponse
			pollID     string
		)

		BeforeEach(func() {
			teacher = dial()
			student = dial()
			registered = join(student, "Ada")

			teacher.send(core.EventCreatePoll, gateway.CreatePollRequest{Question: "Q?", Options: []string{"A", "B"}, Duration: 60})
			state := lo.Must(json.Unmarshal[core.ActivePollState](teacher.expect(core.EventPollStarted)))
			pollID = state.Poll.ID
		})

		It("broadcasts the updated tally", func() {
			student.send(core.EventVote, gateway.VoteRequest{PollID: pollID, StudentID: registered.ID, OptionIndex: 0})

			results := lo.Must(json.Unmarshal[[]core.OptionResult](teacher.expect(core.EventPollResults)))
			Expect(results).To(Equal([]core.OptionResult{
				{Option: "A", Votes: 1, Percentage: 100},
				{Option: "B", Votes: 0, Percentage: 0},
			}))
		})

		Context("when the student votes twice", func() {
			It("sends vote:error with ALREADY_VOTED to the sender", func() {
				student.send(core.EventVote, gateway.VoteRequest{PollID: pollID, StudentID: registered.ID, OptionIndex: 0})
				student.expect(core.EventPollResults)

				student.send(core.EventVote, gateway.VoteRequest{PollID: pollID, StudentID: registered.ID, OptionIndex: 1})

				failure := lo.Must(json.Unmarshal[gateway.ErrorResponse](student.expect(core.EventVoteError)))
				Expect(failure.Kind).To(Equal("ALREADY_VOTED"))
			})
		})

		Context("when the option is out of range", func() {
			It("sends vote:error with INVALID_OPTION", func() {
				student.send(core.EventVote, gateway.VoteRequest{PollID: pollID, StudentID: registered.ID, OptionIndex: 5})

				failure := lo.Must(json.Unmarshal[gateway.ErrorResponse](student.expect(core.EventVoteError)))
				Expect(failure.Kind).To(Equal("INVALID_OPTION"))
			})
		})

		It("enforces uniqueness across a reconnect", func() {
			student.send(core.EventVote, gateway.VoteRequest{PollID: pollID, StudentID: registered.ID, OptionIndex: 0})
			student.expect(core.EventPollResults)

			student.close()

			reconnected := dial()
			reconnected.send(core.EventGetActivePoll, nil)

			state := lo.Must(json.Unmarshal[core.ActivePollState](reconnected.expect(core.EventPollResume)))
			Expect(state.Poll.ID).To(Equal(pollID))
			Expect(state.Results[0].Votes).To(Equal(1))

			reconnected.send(core.EventVote, gateway.VoteRequest{PollID: pollID, StudentID: registered.ID, OptionIndex: 1})

			failure := lo.Must(json.Unmarshal[gateway.ErrorResponse](reconnected.expect(core.EventVoteError)))
			Expect(failure.Kind).To(Equal("ALREADY_VOTED"))
		})
	})

	Describe("get_active_poll", func() {
		Context("when no poll is active", func() {
			It("resumes with a null payload", func() {
				student := dial()
				student.send(core.EventGetActivePoll, nil)

				data := student.expect(core.EventPollResume)
				Expect(string(data)).To(Equal("null"))
			})
		})
	})

	Describe("teacher:kick_student", func() {
		It("notifies the student, rebroadcasts the roster and forgets the identity", func() {
			teacher := dial()
			student := dial()
			registered := join(student, "Ada")
			teacher.expect(core.EventStudents)

			teacher.send(core.EventKickStudent, gateway.KickRequest{StudentID: registered.ID})

			notice := lo.Must(json.Unmarshal[gateway.KickNotice](student.expect(core.EventStudentKicked)))
			Expect(notice.StudentID).To(Equal(registered.ID))

			roster := lo.Must(json.Unmarshal[[]gateway.StudentResponse](teacher.expect(core.EventStudents)))
			Expect(roster).To(BeEmpty())
		})

		Context("when the student is unknown", func() {
			It("is silently ignored", func() {
				teacher := dial()
				teacher.send(core.EventKickStudent, gateway.KickRequest{StudentID: "missing"})

				// The connection keeps working.
				teacher.send(core.EventGetStudents, nil)
				roster := lo.Must(json.Unmarshal[[]gateway.StudentResponse](teacher.expect(core.EventStudents)))
				Expect(roster).To(BeEmpty())
			})
		})
	})

	Describe("disconnect", func() {
		It("clears the connection and rebroadcasts the roster", func() {
			teacher := dial()
			student := dial()
			join(student, "Ada")

			roster := lo.Must(json.Unmarshal[[]gateway.StudentResponse](teacher.expect(core.EventStudents)))
			Expect(roster).To(HaveLen(1))

			student.close()

			roster = lo.Must(json.Unmarshal[[]gateway.StudentResponse](teacher.expect(core.EventStudents)))
			Expect(roster).To(BeEmpty())
		})
	})

	Describe("chat:message", func() {
		It("stamps a server timestamp and rebroadcasts", func() {
			teacher := dial()
			student := dial()

			student.send(core.EventChatMessage, core.ChatMessage{SenderRole: "student", SenderName: "Ada", Text: "hello"})

			message := lo.Must(json.Unmarshal[core.ChatMessage](teacher.expect(core.EventChatMessage)))
			Expect(message.Text).To(Equal("hello"))
			Expect(message.SenderName).To(Equal("Ada"))
			Expect(message.At).NotTo(BeZero())
		})
	})

	Describe("GET /polls/history", func() {
		It("projects completed polls with tallies and totals", func() {
			teacher := dial()
			student := dial()
			registered := join(student, "Ada")

			teacher.send(core.EventCreatePoll, gateway.CreatePollRequest{Question: "Q?", Options: []string{"A", "B"}, Duration: 60})
			state := lo.Must(json.Unmarshal[core.ActivePollState](teacher.expect(core.EventPollStarted)))

			student.send(core.EventVote, gateway.VoteRequest{PollID: state.Poll.ID, StudentID: registered.ID, OptionIndex: 0})
			teacher.expect(core.EventPollResults)

			manager := lo.Must(do.Invoke[*lifecycle.Manager](injector))
			lo.Must0(manager.EndPoll(context.Background(), state.Poll.ID))

			resp := lo.Must(http.Get(testServer.URL + "/polls/history"))
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			history := lo.Must(json.Unmarshal[[]core.HistoryEntry](lo.Must(io.ReadAll(resp.Body))))
			Expect(history).To(HaveLen(1))
			Expect(history[0].Question).To(Equal("Q?"))
			Expect(history[0].TotalVotes).To(Equal(1))
			Expect(history[0].Results[0].Percentage).To(Equal(100))
		})

		It("returns an empty list when nothing completed", func() {
			resp := lo.Must(http.Get(testServer.URL + "/polls/history"))
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("GET /pulse", func() {
		It("reports healthy", func() {
			resp := lo.Must(http.Get(testServer.URL + "/pulse"))
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		})
	})
})
