package core

// Client -> server events.
const (
	EventCreatePoll    = "teacher:create_poll"
	EventVote          = "student:vote"
	EventJoin          = "student:join"
	EventGetActivePoll = "get_active_poll"
	EventGetStudents   = "teacher:get_students"
	EventKickStudent   = "teacher:kick_student"
)

// Server -> client events. EventChatMessage flows both ways: the server
// stamps a timestamp and rebroadcasts it verbatim.
const (
	EventPollStarted       = "poll:started"
	EventPollResults       = "poll:results"
	EventPollEnded         = "poll:ended"
	EventPollResume        = "poll:resume"
	EventPollError         = "poll:error"
	EventVoteError         = "vote:error"
	EventStudentRegistered = "student:registered"
	EventStudentKicked     = "student:kicked"
	EventStudents          = "teacher:students"
	EventChatMessage       = "chat:message"
)

const (
	MinPollOptions = 2
)
