package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benovo-app/benovo-api/api"
	"github.com/benovo-app/benovo-api/config"
	"github.com/benovo-app/benovo-api/databases"
	"github.com/benovo-app/benovo-api/models"
)

// App stores the router, hub and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Hub      *Hub
	Config   config.Config
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := mux.NewRouter()

	if a.Hub == nil {
		a.Hub = NewHub()
	}

	udb := databases.NewUserDatabase(a.dbHelper)
	cdb := databases.NewCampaignDatabase(a.dbHelper)
	mdb := databases.NewMembershipDatabase(a.dbHelper)
	idb := databases.NewInvitationDatabase(a.dbHelper)
	condb := databases.NewContributionDatabase(a.dbHelper)
	chatdb := databases.NewChatDatabase(a.dbHelper)

	auth := Auth{DB: udb}
	avatar := Avatar{DB: udb}
	campaign := Campaign{DB: cdb, MDB: mdb, IDB: idb, CDB: condb, ChatDB: chatdb, UDB: udb, Hub: a.Hub}
	invitation := Invitation{DB: idb, MDB: mdb, CamDB: cdb, UDB: udb, Hub: a.Hub}
	member := Member{MDB: mdb, Hub: a.Hub}
	contribution := Contribution{DB: condb, MDB: mdb, UDB: udb, Hub: a.Hub}
	chat := Chat{DB: chatdb, MDB: mdb, UDB: udb, Hub: a.Hub}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	r.HandleFunc("/ws/notifications", a.Hub.HandleWebSocket)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/register", http.HandlerFunc(auth.RegisterHandler)).Methods("POST")
	apiCreate.Handle("/auth/login", http.HandlerFunc(auth.LoginHandler)).Methods("POST")
	apiCreate.Handle("/auth/profile", api.Middleware(http.HandlerFunc(auth.ProfileHandler))).Methods("GET")
	apiCreate.Handle("/auth/profile", api.Middleware(http.HandlerFunc(auth.UpdateProfileHandler))).Methods("PUT")
	apiCreate.Handle("/auth/avatar", api.Middleware(http.HandlerFunc(avatar.UploadAvatarHandler))).Methods("POST")

	apiCreate.Handle("/campaigns", api.Middleware(http.HandlerFunc(campaign.CreateCampaignHandler))).Methods("POST")
	apiCreate.Handle("/campaigns", api.Middleware(http.HandlerFunc(campaign.UserCampaignsHandler))).Methods("GET")
	apiCreate.Handle("/campaigns/{campaign_id}", api.Middleware(http.HandlerFunc(campaign.CampaignByIDHandler))).Methods("GET")
	apiCreate.Handle("/campaigns/{campaign_id}", api.Middleware(http.HandlerFunc(campaign.DeleteCampaignHandler))).Methods("DELETE")

	apiCreate.Handle("/campaigns/{campaign_id}/invitations", api.Middleware(http.HandlerFunc(invitation.InviteMemberHandler))).Methods("POST")
	apiCreate.Handle("/campaigns/{campaign_id}/invitations", api.Middleware(http.HandlerFunc(invitation.CampaignInvitationsHandler))).Methods("GET")
	apiCreate.Handle("/campaigns/{campaign_id}/invitations/{invitation_id}", api.Middleware(http.HandlerFunc(invitation.CancelInvitationHandler))).Methods("DELETE")
	apiCreate.Handle("/invitations", api.Middleware(http.HandlerFunc(invitation.UserInvitationsHandler))).Methods("GET")
	apiCreate.Handle("/invitations/{invitation_id}/respond", api.Middleware(http.HandlerFunc(invitation.RespondInvitationHandler))).Methods("POST")

	apiCreate.Handle("/campaigns/{campaign_id}/members/{member_id}", api.Middleware(http.HandlerFunc(member.UpdateMemberHandler))).Methods("PUT")
	apiCreate.Handle("/campaigns/{campaign_id}/members/{member_id}", api.Middleware(http.HandlerFunc(member.RemoveMemberHandler))).Methods("DELETE")

	apiCreate.Handle("/campaigns/{campaign_id}/contributions", api.Middleware(http.HandlerFunc(contribution.RecordContributionHandler))).Methods("POST")
	apiCreate.Handle("/campaigns/{campaign_id}/contributions", api.Middleware(http.HandlerFunc(contribution.CampaignContributionsHandler))).Methods("GET")
	apiCreate.Handle("/contributions", api.Middleware(http.HandlerFunc(contribution.UserContributionsHandler))).Methods("GET")

	apiCreate.Handle("/campaigns/{campaign_id}/messages", api.Middleware(http.HandlerFunc(chat.SendMessageHandler))).Methods("POST")
	apiCreate.Handle("/campaigns/{campaign_id}/messages", api.Middleware(http.HandlerFunc(chat.GetMessagesHandler))).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("benovo-api has connected to the database")

	ctx, cancel := api.WithQueryTimeout(nil)
	defer cancel()
	if err := databases.EnsureIndexes(ctx, a.dbHelper); err != nil {
		zap.S().With(err).Error("failed to ensure indexes")
		return err
	}

	// initialize api router
	a.initializeRoutes()
	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// DatabaseHelper exposes the connected database for background jobs
func (a *App) DatabaseHelper() databases.DatabaseHelper {
	return a.dbHelper
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
