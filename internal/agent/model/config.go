package model

// ================ Config ================
type SessionConfig struct {
	Backend string `envconfig:"SESSION_BACKEND" default:"memory"`
	TTL     string `envconfig:"SESSION_TTL" default:"2h"`
	// IdleTTL is how long an untouched in-memory session survives; "0" disables the sweeper.
	IdleTTL string `envconfig:"SESSION_IDLE_TTL" default:"1h"`
	Tools   struct {
		MaxRounds int `envconfig:"SESSION_TOOL_MAX_ROUNDS" default:"3"`
	}
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.0-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

type DialogueConfig struct {
	Timezone    string `envconfig:"DIALOGUE_TIMEZONE" default:"Asia/Jerusalem"`
	PinnedYear  int    `envconfig:"DIALOGUE_PINNED_YEAR" default:"2026"`
	ContextTopK int    `envconfig:"DIALOGUE_CONTEXT_TOP_K" default:"3"`
}

type PromptConfig struct {
	BusinessName string `envconfig:"PROMPT_BUSINESS_NAME" default:"Leader"`
	BusinessType string `envconfig:"PROMPT_BUSINESS_TYPE" default:"payment terminals and yacht charters"`
}

// Phrases are the fixed spoken lines the service answers with outside of model output.
type Phrases struct {
	Greeting            string `envconfig:"PHRASE_GREETING" default:"שלום, הגעתם לליידר. איך אפשר לעזור?"`
	Checking            string `envconfig:"PHRASE_CHECKING" default:"רגע, אני בודק את זה עבורך."`
	Apology             string `envconfig:"PHRASE_APOLOGY" default:"מצטער, הייתה שגיאה. אפשר לנסות שוב?"`
	EmptyResponse       string `envconfig:"PHRASE_EMPTY_RESPONSE" default:"סליחה, לא הבנתי. אפשר לחזור על זה?"`
	DidNotHear          string `envconfig:"PHRASE_DID_NOT_HEAR" default:"סליחה, לא שמעתי. אפשר לחזור?"`
	NoPending           string `envconfig:"PHRASE_NO_PENDING" default:"אין בקשה ממתינה. במה עוד אפשר לעזור?"`
	Transferring        string `envconfig:"PHRASE_TRANSFERRING" default:"מעביר אותך לנציג, רגע בבקשה."`
	OperatorUnavailable string `envconfig:"PHRASE_OPERATOR_UNAVAILABLE" default:"מצטער, הנציג אינו זמין כרגע. איך אוכל לעזור לך בנושא אחר?"`
}

type BookingConfig struct {
	OpenHour  int `envconfig:"BOOKING_OPEN_HOUR" default:"8"`
	CloseHour int `envconfig:"BOOKING_CLOSE_HOUR" default:"20"`
}

// StorageConfig points at the local files the integrations read and write.
type StorageConfig struct {
	KnowledgeDir  string `envconfig:"KNOWLEDGE_DIR" default:"knowledge"`
	ChunkSize     int    `envconfig:"KNOWLEDGE_CHUNK_SIZE" default:"1000"`
	ChunkOverlap  int    `envconfig:"KNOWLEDGE_CHUNK_OVERLAP" default:"200"`
	OrdersDir     string `envconfig:"ORDERS_DIR" default:"orders"`
	ClientLogPath string `envconfig:"CLIENT_LOG_PATH" default:"data/clientData.txt"`
	ProfilesPath  string `envconfig:"PROFILES_PATH"`
}
