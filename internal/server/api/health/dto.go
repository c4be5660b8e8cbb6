package health

type Input struct{}

type HResponse struct {
	Status string `json:"status" example:"OK" doc:"Состояние сервера"`
}

type Output struct {
	Body HResponse
}
