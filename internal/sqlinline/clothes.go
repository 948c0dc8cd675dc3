package sqlinline

// Schema: see DESIGN.md (clothing_items). Image columns hold data URIs.

const QInsertClothingItem = `--sql 0e56266f-ded2-4694-ae0c-1049d2a8e7dc
insert into clothing_items (
  id, user_id, name, category, color, brand,
  image_url, original_image_url, description,
  is_public, is_favorite, processing_status, processing_error,
  created_at, updated_at
)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
returning created_at, updated_at;
`

const QSelectClothingItemByID = `--sql e5b7f6b4-3361-4bfe-9f84-8cb33e7459be
select id, user_id, name, category, color, brand,
       image_url, original_image_url, description,
       is_public, is_favorite, processing_status, processing_error,
       created_at, updated_at
from clothing_items
where id = $1;
`

const QSelectClothingItemsByOwner = `--sql 550e194d-2dad-4611-a73f-b18449edc750
select id, user_id, name, category, color, brand,
       image_url, original_image_url, description,
       is_public, is_favorite, processing_status, processing_error,
       created_at, updated_at
from clothing_items
where user_id = $1
  and ($2::text is null or category = $2::text)
order by created_at desc, id;
`

// QUpdateClothingItem rewrites every mutable column. id, user_id,
// original_image_url and created_at are never touched.
const QUpdateClothingItem = `--sql 6de3eee5-a32c-4ffa-90d8-20dd9c7a81db
update clothing_items
set name = $2,
    category = $3,
    color = $4,
    brand = $5,
    image_url = $6,
    description = $7,
    is_public = $8,
    is_favorite = $9,
    processing_status = $10,
    processing_error = $11,
    updated_at = now()
where id = $1
returning updated_at;
`

const QUpdateClothingItemDetails = `--sql 42670c8f-5439-4b3a-8264-52e2a97e5727
update clothing_items
set name = $2,
    category = $3,
    color = $4,
    brand = $5,
    description = $6,
    is_public = $7,
    is_favorite = $8,
    updated_at = now()
where id = $1
returning updated_at;
`

// QResetClothingItemForReprocess only matches rows in a terminal status, so
// concurrent requests and running pipelines cannot both win.
const QResetClothingItemForReprocess = `--sql 7a3d9e21-4c6b-4f8a-b2e5-91d0c8f46a37
update clothing_items
set processing_status = 'PENDING',
    image_url = original_image_url,
    processing_error = null,
    updated_at = now()
where id = $1
  and processing_status = any($2::text[])
returning id, user_id, name, category, color, brand,
          image_url, original_image_url, description,
          is_public, is_favorite, processing_status, processing_error,
          created_at, updated_at;
`

const QDeleteClothingItem = `--sql e7f1eea8-7475-4e46-8f8a-2d712c381898
delete from clothing_items
where id = $1;
`

const QMarkAbandonedClothingItems = `--sql 3cf6f3c5-aa3e-490c-b761-6069ee62e978
update clothing_items
set processing_status = 'FAILED',
    processing_error = $2,
    updated_at = now()
where processing_status = any($3::text[])
  and updated_at < $1
returning id;
`

const QSelectStuckClothingItems = `--sql 94075ce4-11b9-4229-85bb-724875b5f685
select id, processing_status, updated_at
from clothing_items
where processing_status = any($2::text[])
  and updated_at < $1
order by updated_at asc;
`
