package shop

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/MrWong99/signshop/pkg/types"
)

// priceLine is the sign line holding the price.
const priceLine = 3

// constructor builds a shop of one kind for actor at anchor. It must not
// touch the registry or the actor's selection.
type constructor func(ctx context.Context, env *Env, kind Kind, actor types.Actor, anchor types.Location, lines []string) (Shop, error)

// constructors is the dispatch table from label keyword to variant.
var constructors = map[Kind]constructor{
	KindBuy:       newExchange,
	KindSell:      newExchange,
	KindIBuy:      newExchange,
	KindISell:     newExchange,
	KindTrade:     newTrade,
	KindITrade:    newTrade,
	KindDevice:    newDevice,
	KindDeviceOn:  newDevice,
	KindDeviceOff: newDevice,
}

// ParsePrice extracts the price from a sign line. Every non-digit character
// is ignored; a line without digits, or one whose digits overflow int,
// yields -1.
func ParsePrice(line string) int {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, line)
	if digits == "" {
		return -1
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n > math.MaxInt32 {
		return -1
	}
	return int(n)
}

// prepare checks the create permission and reads the price. It is the
// shared first half of every constructor.
func prepare(env *Env, kind Kind, actor types.Actor, anchor types.Location, lines []string) (base, error) {
	if !env.Permissions.HasPermission(actor, env.CreatePermission(kind)) {
		return base{}, configErr(ErrPermissionDenied, fmt.Sprintf("You don't have permission to build a %s sign.", kind))
	}
	price := -1
	if len(lines) > priceLine {
		price = ParsePrice(lines[priceLine])
	}
	if price < 0 {
		return base{}, configErr(ErrInvalidConfig, "Bad price.")
	}
	b := base{env: env, kind: kind, anchor: anchor, owner: actor.ID, price: price}
	if env.Policy.AdminBuildsUnowned && env.isAdmin(actor) {
		b.owner = uuid.Nil
	}
	return b, nil
}

// staged returns the actor's n most recent selections, newest first.
func staged(env *Env, actor types.Actor, n int) ([]types.Location, bool) {
	stack := env.Selections.Staged(actor.ID)
	if len(stack) < n {
		return nil, false
	}
	out := make([]types.Location, n)
	for i := range n {
		out[i] = stack[len(stack)-1-i]
	}
	return out, true
}

// containerContents snapshots the container at loc as an item template.
func containerContents(ctx context.Context, env *Env, loc types.Location) (types.Items, error) {
	if !env.World.IsContainer(ctx, loc) {
		return nil, configErr(ErrInvalidConfig, fmt.Sprintf("%s is not a container.", loc))
	}
	items, err := env.Inventories.Contents(ctx, types.ContainerHolder(loc))
	if err != nil {
		return nil, fmt.Errorf("shop: read container %s: %w", loc, err)
	}
	items = items.Clone()
	if items.Empty() {
		return nil, configErr(ErrInvalidConfig, "The selected container is empty.")
	}
	return items, nil
}

func configErr(kind error, reason string) error {
	return &Error{Err: kind, Reason: reason}
}

func titleCase(k Kind) string {
	s := string(k)
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
