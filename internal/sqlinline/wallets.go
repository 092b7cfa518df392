package sqlinline

const QSelectWallet = `--sql 3af70f2f-0652-4e5c-aa94-257e1f793309
select creator_user_id, available_cents, pending_cents, currency, updated_at
from wallets
where creator_user_id = $1::uuid;
`

const QUpsertWalletCredit = `--sql 69f79aad-a24a-4383-9c97-7481c67cff88
insert into wallets (creator_user_id, available_cents, pending_cents, currency)
values ($1::uuid, $2::bigint, 0, $3::text)
on conflict (creator_user_id) do update set
    available_cents = wallets.available_cents + excluded.available_cents,
    updated_at = now();
`

const QHoldWalletForPayout = `--sql b1bbdb28-f8c0-4ae2-b6bc-072aaa554696
update wallets set
    available_cents = available_cents - $2::bigint,
    pending_cents = pending_cents + $2::bigint,
    updated_at = now()
where creator_user_id = $1::uuid
  and available_cents >= $2::bigint;
`

const QReleaseWalletHold = `--sql c364da0c-1ade-44bf-b11e-9a44d61f5375
update wallets set
    available_cents = available_cents + $2::bigint,
    pending_cents = pending_cents - $2::bigint,
    updated_at = now()
where creator_user_id = $1::uuid
  and pending_cents >= $2::bigint;
`

const QSettleWalletPending = `--sql cbef7f1d-fd24-4c7d-bc65-a95475e7de29
update wallets set
    pending_cents = pending_cents - $2::bigint,
    updated_at = now()
where creator_user_id = $1::uuid
  and pending_cents >= $2::bigint;
`
