package handlers

const (
	welcomeMessage = "Welcome to Potato Disease Classification API"
	pingMessage    = "Hello, I am alive"
)

type WelcomeResponse struct {
	Message   string            `json:"message" example:"Welcome to Potato Disease Classification API"`
	Endpoints map[string]string `json:"endpoints"`
}

type ErrorResponse struct {
	Detail string `json:"detail" example:"File must be an image"`
}
