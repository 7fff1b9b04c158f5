package planning

import (
	"github.com/teslashibe/go-ssl/pkg/commands"
)

// Goalie drives robotID as goalkeeper for its own goal, or for the other
// team's goal when opposite is set. A shot on goal sends it to the safest
// intercept point; otherwise it holds the blocking position GoalieOffset in
// front of the goal, facing the ball. It reports whether a command was issued.
func (p *Planner) Goalie(robotID int, opposite bool) bool {
	team := p.team
	if opposite {
		team = team.Opponent()
	}

	if _, shot := p.IsShotComing(team); shot {
		pos, ok := p.SafestInterceptPoint(robotID)
		if !ok {
			return false
		}
		p.MoveStraight(robotID, commands.At(pos))
		return true
	}

	pose, ok := p.BlockGoalCenterPos(p.cfg.GoalieOffset, nil, team)
	if !ok {
		return false
	}
	p.MoveStraight(robotID, commands.Facing(pose.Pos, pose.Heading))
	return true
}
