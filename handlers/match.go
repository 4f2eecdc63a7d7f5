package handlers

import (
	"trivia-match-system/middleware"
	"trivia-match-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchRoutes(app *fiber.App, matchService *services.MatchService, answerService *services.AnswerService, forfeitService *services.ForfeitService, statsService *services.StatsService) {
	// 🔐 All match routes are user-scoped — Gateway auth is global, user
	// context is enforced here.
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Lifecycle: challenge → accept → active → finished
	secured.Post("/matches", matchService.CreateChallengeEndpoint)
	secured.Get("/matches", matchService.ListMatchesEndpoint)
	secured.Post("/matches/:id/accept", matchService.AcceptChallengeEndpoint)

	// Per-match play loop
	secured.Get("/matches/:id/state", matchService.GetMatchStateEndpoint)
	secured.Post("/matches/:id/answers", answerService.SubmitAnswerEndpoint)
	secured.Get("/matches/:id/results", matchService.GetResultsEndpoint)

	// Forfeit negotiation
	secured.Post("/matches/:id/forfeit", forfeitService.RequestForfeitEndpoint)
	secured.Post("/matches/:id/forfeit/respond", forfeitService.RespondForfeitEndpoint)

	// History & aggregates
	secured.Get("/users/me/stats", statsService.GetMyStatsEndpoint)
}
