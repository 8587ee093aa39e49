package process

import "os/user"

// userCache memoizes uid to user name lookups for the life of the process.
// Unknown uids resolve to the numeric id and are cached too.
type userCache struct {
	names   map[string]string
	resolve func(uid string) (string, error)
}

func newUserCache() *userCache {
	return &userCache{
		names: make(map[string]string),
		resolve: func(uid string) (string, error) {
			u, err := user.LookupId(uid)
			if err != nil {
				return "", err
			}
			return u.Username, nil
		},
	}
}

func (uc *userCache) lookup(uid string) string {
	if uid == "" {
		return ""
	}
	if name, ok := uc.names[uid]; ok {
		return name
	}
	name := uid
	if n, err := uc.resolve(uid); err == nil && n != "" {
		name = n
	}
	uc.names[uid] = name
	return name
}
