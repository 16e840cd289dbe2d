// Package channel owns user delivery destinations and resolves which of them
// a notification fans out to.
//
// A channel is eligible when it is active, verified and not soft-deleted,
// and the user's Preference allows its type. Registry.EligibleChannels has
// no side effects and returns an empty slice for users without channels.
//
//	reg := channel.NewRegistry(store, channel.WithPreferences(channel.NewPostgresPreferences(pool)))
//	ch, err := reg.Add(ctx, channel.AddParams{UserID: uid, Type: channel.TypeEmail, Address: "a@b.co"})
//	_, err = reg.Verify(ctx, ch.ID, tokenFromLink)
//	eligible, err := reg.EligibleChannels(ctx, uid)
package channel
