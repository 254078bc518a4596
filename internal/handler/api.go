package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/habitstack/internal/db"
	"github.com/habitstack/internal/lock"
	"github.com/habitstack/internal/logger"
	"github.com/habitstack/internal/service"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	categories *service.CategoryService
	habits     *service.HabitService
	stacks     *service.StackService
	progress   *service.ProgressService
}

// NewAPI constructs a handler set with shared services.
// The same locker guards toggles, stack updates and progress updates.
func NewAPI(store *db.Store, locker lock.Locker, log *logger.Logger) *API {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if log == nil {
		log = logger.NewNop()
	}
	registerValidation()

	progressRepo := db.NewProgressRepository(store)

	return &API{
		categories: service.NewCategoryService(store),
		habits:     service.NewHabitService(store),
		stacks:     service.NewStackService(db.NewStackRepository(store), progressRepo, locker, log.With("service", "StackService")),
		progress:   service.NewProgressService(progressRepo, locker),
	}
}

// Root 存活检查
func (a *API) Root(c *gin.Context) {
	respondMessage(c, "Habit Stack Builder API is running")
}
