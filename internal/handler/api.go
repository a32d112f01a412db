package handler

import (
	"github.com/agrimaster/internal/notify"
	"github.com/agrimaster/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db            *gorm.DB
	crops         *service.CropService
	fields        *service.FieldService
	weather       *service.WeatherService
	users         *service.UserService
	community     *service.CommunityService
	reports       *service.ReportService
	notifications *notify.Aggregator
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB) *API {
	crops := service.NewCropService(gdb)

	return &API{
		db:            gdb,
		crops:         crops,
		fields:        service.NewFieldService(gdb),
		weather:       service.NewWeatherService(gdb),
		users:         service.NewUserService(gdb),
		community:     service.NewCommunityService(gdb),
		reports:       service.NewReportService(gdb),
		notifications: notify.NewAggregator(crops, nil, nil),
	}
}

// Crops exposes the crop service for background job wiring.
func (a *API) Crops() *service.CropService {
	return a.crops
}

// Fields exposes the field service for background job wiring.
func (a *API) Fields() *service.FieldService {
	return a.fields
}

// Weather exposes the weather service for background job wiring.
func (a *API) Weather() *service.WeatherService {
	return a.weather
}

// Notifications exposes the aggregator for background job wiring.
func (a *API) Notifications() *notify.Aggregator {
	return a.notifications
}
