package api

import (
	"net/http"

	"github.com/dmitrymomot/courier/pkg/channel"
)

// ChannelRequest is the body of POST /users/{userID}/channels.
type ChannelRequest struct {
	Type    channel.Type `json:"type"`
	Address string       `json:"address"`
	Primary bool         `json:"primary,omitempty"`
}

// VerifyRequest is the body of POST /channels/{id}/verify.
type VerifyRequest struct {
	Token string `json:"token"`
}

func (a *API) listChannels(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	opts := channel.ListOptions{
		Type:         channel.Type(r.URL.Query().Get("type")),
		VerifiedOnly: r.URL.Query().Get("verified") == "true",
	}
	chs, err := a.channels.ListByUser(r.Context(), userID, opts)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, chs, map[string]any{"count": len(chs)})
}

// addChannel returns the verification token in meta so that the caller can
// deliver it to the address owner.
func (a *API) addChannel(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req ChannelRequest
	if !a.bind(w, r, &req) {
		return
	}

	c, err := a.channels.Add(r.Context(), channel.AddParams{
		UserID:  userID,
		Type:    req.Type,
		Address: req.Address,
		Primary: req.Primary,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respondStatus(w, r, http.StatusCreated, c, map[string]any{"verification_token": c.VerificationToken})
}

func (a *API) verifyChannel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req VerifyRequest
	if !a.bind(w, r, &req) {
		return
	}
	c, err := a.channels.Verify(r.Context(), id, req.Token)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, c, nil)
}

func (a *API) deactivateChannel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := a.channels.Deactivate(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, c, nil)
}

func (a *API) deleteChannel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.channels.Delete(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreferenceRequest is the body of PUT /users/{userID}/preferences. It
// replaces the stored settings as a whole.
type PreferenceRequest struct {
	Disabled     []channel.Type `json:"disabled"`
	DoNotDisturb bool           `json:"do_not_disturb"`
	QuietStart   string         `json:"quiet_start"`
	QuietEnd     string         `json:"quiet_end"`
	Timezone     string         `json:"timezone"`
}

func (a *API) getPreference(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.channels.Preference(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, p, nil)
}

func (a *API) putPreference(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req PreferenceRequest
	if !a.bind(w, r, &req) {
		return
	}

	p, err := a.channels.SetPreference(r.Context(), userID, channel.Preference{
		Disabled:     req.Disabled,
		DoNotDisturb: req.DoNotDisturb,
		QuietStart:   req.QuietStart,
		QuietEnd:     req.QuietEnd,
		Timezone:     req.Timezone,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, p, nil)
}
