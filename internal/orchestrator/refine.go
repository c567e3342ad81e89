package orchestrator

import (
	"context"

	"github.com/mpataki/teamforge/internal/generator"
	"github.com/mpataki/teamforge/internal/models"
)

// Refine rewrites an agent's description in light of the discussion so far
// and stores the result on the session, and on its run when there is one.
func (o *Orchestrator) Refine(ctx context.Context, sess *Session, index int) (string, error) {
	agent, err := sess.agent(index)
	if err != nil {
		return "", err
	}

	refiner := generator.NewRefiner(o.client, sess.Settings, o.opts.Logger)
	desc, err := refiner.Refine(ctx, agent, sess.Request, sess.Log.History())
	if err != nil {
		return "", err
	}

	team := models.Team(sess.Team).Clone()
	team[index].Description = desc
	if err := o.persistTeam(sess.RunID, team, sess.Settings); err != nil {
		return desc, err
	}
	sess.Team = team
	return desc, nil
}
